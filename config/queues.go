package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Queue stores configuration for one evaluation queue.
type Queue struct {
	// ID contains evaluation queue ID.
	ID int64 `json:"id"`
	// Validator contains registry name of validation function.
	Validator string `json:"validator"`
	// Scorer contains registry name of scoring function.
	Scorer string `json:"scorer,omitempty"`
	// Goldstandard contains storage key of goldstandard file.
	//
	// Empty goldstandard disables scoring for this queue, which is
	// how writeup-only queues opt out.
	Goldstandard string `json:"goldstandard,omitempty"`
	// JoinKey contains column used to join writeup rows with
	// prediction rows. Empty value means "submitterId".
	JoinKey string `json:"join_key,omitempty"`
}

// LoadQueuesFromFile loads queue configs from JSON file.
//
// File should contain either an array of queues or an object with
// "queues" key.
func LoadQueuesFromFile(path string) ([]Queue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var queues []Queue
	if err := json.Unmarshal(data, &queues); err != nil {
		var wrapped struct {
			Queues []Queue `json:"queues"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		queues = wrapped.Queues
	}
	for i, queue := range queues {
		if queue.ID == 0 {
			return nil, fmt.Errorf("queue %d has empty id", i)
		}
		if queue.Validator == "" {
			return nil, fmt.Errorf(
				"queue %d has empty validator", queue.ID,
			)
		}
	}
	return queues, nil
}
