// Package harness drives submissions of evaluation queues through
// the validation and scoring pipeline.
package harness

import (
	"context"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/openchallenges/harness/synapse"
)

// Platform represents connection to the collaboration platform.
//
// Implemented by *synapse.Client.
type Platform interface {
	GetSubmissionBundles(
		ctx context.Context, evaluationID int64, status synapse.Status,
	) ([]synapse.SubmissionBundle, error)
	GetSubmission(
		ctx context.Context, id int64, downloadDir string,
	) (synapse.Submission, error)
	GetSubmissionStatus(
		ctx context.Context, id int64,
	) (synapse.SubmissionStatus, error)
	StoreSubmissionStatus(
		ctx context.Context, status synapse.SubmissionStatus,
	) (synapse.SubmissionStatus, error)
	GetEvaluation(ctx context.Context, id int64) (synapse.Evaluation, error)
	GetUserProfile(ctx context.Context, id int64) (synapse.UserProfile, error)
	GetProject(ctx context.Context, id string) (synapse.Project, error)
	CreateProject(ctx context.Context, name string) (synapse.Project, error)
	CopyEntity(ctx context.Context, entityID, destinationID string) error
	SetPermissions(
		ctx context.Context, entityID string, principalID int64,
		accessTypes []string,
	) error
	SendMessage(
		ctx context.Context, userIDs []int64, subject, body, contentType string,
	) error
	QueryAll(
		ctx context.Context, query string, pageSize int,
	) ([]map[string]string, error)
}

var _ Platform = (*synapse.Client)(nil)

// RuleViolationError represents a submitter mistake that should be
// reported to the submitter rather than to administrators.
type RuleViolationError struct {
	Message string
}

func (e *RuleViolationError) Error() string {
	return e.Message
}

// Violationf creates a rule violation with a submitter-facing message.
//
// Validation callables use it to reject a submission with a message
// that explains what the submitter should fix.
func Violationf(format string, args ...any) error {
	return &RuleViolationError{Message: fmt.Sprintf(format, args...)}
}

// ValidateFunc checks one submission against the goldstandard.
//
// A nil error means the submission is valid. Returned annotations are
// attached to the submission status, the message is included in the
// notification to the submitter. Rule violations should be returned
// via Violationf, any other error is treated as internal.
type ValidateFunc func(
	ctx context.Context, submission synapse.Submission, goldstandard string,
) (synapse.Annotations, string, error)

// ScoreFunc scores one downloaded submission file against the
// goldstandard. Returned annotations carry the metric values.
type ScoreFunc func(
	ctx context.Context, filePath, goldstandard string,
) (synapse.Annotations, string, error)

// Registry resolves validation and scoring callables by name.
//
// Queue configs refer to callables symbolically, the deployer
// registers the implementations before running the driver.
type Registry struct {
	validators map[string]ValidateFunc
	scorers    map[string]ScoreFunc
}

func NewRegistry() *Registry {
	return &Registry{
		validators: map[string]ValidateFunc{},
		scorers:    map[string]ScoreFunc{},
	}
}

func (r *Registry) RegisterValidator(name string, fn ValidateFunc) {
	if _, ok := r.validators[name]; ok {
		panic(fmt.Sprintf("validator %q already registered", name))
	}
	r.validators[name] = fn
}

func (r *Registry) RegisterScorer(name string, fn ScoreFunc) {
	if _, ok := r.scorers[name]; ok {
		panic(fmt.Sprintf("scorer %q already registered", name))
	}
	r.scorers[name] = fn
}

func (r *Registry) Validator(name string) (ValidateFunc, error) {
	fn, ok := r.validators[name]
	if !ok {
		return nil, fmt.Errorf(
			"validator %q is not registered, supported validators: %v",
			name, sortedKeys(r.validators),
		)
	}
	return fn, nil
}

func (r *Registry) Scorer(name string) (ScoreFunc, error) {
	fn, ok := r.scorers[name]
	if !ok {
		return nil, fmt.Errorf(
			"scorer %q is not registered, supported scorers: %v",
			name, sortedKeys(r.scorers),
		)
	}
	return fn, nil
}

func sortedKeys[T any](values map[string]T) []string {
	keys := maps.Keys(values)
	slices.Sort(keys)
	return keys
}
