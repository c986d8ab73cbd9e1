package synapse

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// UpdateOptions configures UpdateStatus.
//
// The zero value publishes added keys with public visibility. Callers
// adding private annotations must set IsPrivate explicitly.
type UpdateOptions struct {
	// IsPrivate contains visibility of newly added keys.
	IsPrivate bool
	// Force allows a key to switch between private and public:
	// the new visibility supersedes the existing one.
	Force bool
}

// ConflictError reports annotation keys that would change visibility
// without force.
type ConflictError struct {
	Keys []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"annotation keys change visibility: %s",
		strings.Join(e.Keys, ", "),
	)
}

// UpdateStatus merges annotations into a submission status.
//
// The returned status carries the merged annotations re-encoded from
// scratch; the input status is not mutated. Merge is later-wins within
// one visibility. A key never appears in both the private and public
// partition of the result: an attempt to move a key between partitions
// fails with *ConflictError unless opts.Force is set.
func UpdateStatus(
	status SubmissionStatus, add Annotations, opts UpdateOptions,
) (SubmissionStatus, error) {
	private, public := DecodeAnnotations(status.Annotations)
	existing, opposite := public, private
	if opts.IsPrivate {
		existing, opposite = private, public
	}
	var conflicts []string
	for key := range add {
		if _, ok := opposite[key]; ok {
			conflicts = append(conflicts, key)
		}
	}
	if len(conflicts) > 0 {
		if !opts.Force {
			slices.Sort(conflicts)
			return SubmissionStatus{}, &ConflictError{Keys: conflicts}
		}
		for _, key := range conflicts {
			delete(opposite, key)
		}
	}
	for key, value := range add {
		existing[key] = value
	}
	privateAnnos := EncodeAnnotations(private, true)
	publicAnnos := EncodeAnnotations(public, false)
	status.Annotations = SubmissionAnnotations{
		StringAnnos: concat(privateAnnos.StringAnnos, publicAnnos.StringAnnos),
		LongAnnos:   concat(privateAnnos.LongAnnos, publicAnnos.LongAnnos),
		DoubleAnnos: concat(privateAnnos.DoubleAnnos, publicAnnos.DoubleAnnos),
	}
	return status, nil
}

func concat[T any](a, b []T) []T {
	if len(a) == 0 {
		return b
	}
	return append(slices.Clone(a), b...)
}
