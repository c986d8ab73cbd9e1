package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/openchallenges/harness/harness"
	"github.com/openchallenges/harness/synapse"
)

// registry holds the validation and scoring callables available to
// queue configs. Challenge deployments register their own callables
// here before building the binary.
var registry = harness.NewRegistry()

func init() {
	registry.RegisterValidator("accept", acceptValidator)
	registry.RegisterValidator("csv", csvValidator)
	registry.RegisterScorer("row-count", rowCountScorer)
}

// acceptValidator accepts every submission. Used by writeup queues
// where the writeup project is reviewed by hand.
func acceptValidator(
	ctx context.Context, submission synapse.Submission, goldstandard string,
) (synapse.Annotations, string, error) {
	return nil, "submission accepted", nil
}

// csvValidator requires a non-empty prediction file with the same
// header line as the goldstandard.
func csvValidator(
	ctx context.Context, submission synapse.Submission, goldstandard string,
) (synapse.Annotations, string, error) {
	if submission.FilePath == "" {
		return nil, "", harness.Violationf(
			"submission has no file, please submit a prediction file",
		)
	}
	header, rows, err := readCSVHeader(submission.FilePath)
	if err != nil {
		return nil, "", harness.Violationf(
			"cannot read prediction file: %v", err,
		)
	}
	if rows == 0 {
		return nil, "", harness.Violationf("prediction file has no data rows")
	}
	if goldstandard != "" {
		expected, _, err := readCSVHeader(goldstandard)
		if err != nil {
			return nil, "", fmt.Errorf("cannot read goldstandard: %w", err)
		}
		if header != expected {
			return nil, "", harness.Violationf(
				"prediction file header %q does not match expected %q",
				header, expected,
			)
		}
	}
	return synapse.Annotations{
		"prediction_rows": synapse.LongValue(rows),
	}, "prediction file looks valid", nil
}

// rowCountScorer reports how many prediction rows match the
// goldstandard row count. A smoke-test scorer for new deployments.
func rowCountScorer(
	ctx context.Context, filePath, goldstandard string,
) (synapse.Annotations, string, error) {
	_, rows, err := readCSVHeader(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("cannot read prediction file: %w", err)
	}
	_, expected, err := readCSVHeader(goldstandard)
	if err != nil {
		return nil, "", fmt.Errorf("cannot read goldstandard: %w", err)
	}
	if rows != expected {
		return nil, "", fmt.Errorf(
			"prediction has %d rows, goldstandard has %d", rows, expected,
		)
	}
	return synapse.Annotations{
		"scored_rows": synapse.LongValue(rows),
	}, fmt.Sprintf("scored %d rows", rows), nil
}

func readCSVHeader(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return "", 0, fmt.Errorf("file %q is empty", path)
	}
	header := scanner.Text()
	var rows int64
	for scanner.Scan() {
		if len(scanner.Text()) > 0 {
			rows++
		}
	}
	return header, rows, scanner.Err()
}
