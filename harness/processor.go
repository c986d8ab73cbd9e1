package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/openchallenges/harness/core"
	"github.com/openchallenges/harness/synapse"
)

// FailureReasonKey is the annotation that carries the failure message
// of an invalid submission.
const FailureReasonKey = "FAILURE_REASON"

// failureReasonLimit bounds the stored failure message length.
const failureReasonLimit = 1000

// InteractionResult represents the outcome of validating or scoring
// one submission.
type InteractionResult struct {
	// Valid reports whether the submission passed.
	Valid bool
	// Skip leaves the submission untouched: no status write, no
	// notification.
	Skip bool
	// Annotations are attached to the submission status with public
	// visibility.
	Annotations synapse.Annotations
	// Message is included in the notification.
	Message string
	// Err holds the failure when Valid is false.
	Err error
}

// queueProcessor supplies the per-submission behavior of a queue pass.
type queueProcessor interface {
	// FilterStatus selects which submissions to process.
	FilterStatus() synapse.Status
	// SuccessStatus is written when the interaction succeeds.
	SuccessStatus() synapse.Status
	// Interact performs the submission check.
	Interact(ctx context.Context, submission synapse.Submission) InteractionResult
	// Notify reports the outcome to the submitter or administrators.
	//
	// Called strictly after the status write for this submission.
	Notify(
		ctx context.Context, evaluation synapse.Evaluation,
		submission synapse.Submission, result InteractionResult,
	)
}

// Processor runs a queue pass: fetch submission bundles, interact
// with each submission, persist the updated status and notify.
//
// One submission's failure never aborts the pass, a failure of the
// platform itself does.
type Processor struct {
	platform Platform
	logger   *core.Logger
	// EvaluationID selects the queue.
	EvaluationID int64
	// CacheDir receives downloaded submission files.
	CacheDir string
	// DryRun disables status writes.
	DryRun bool
	// RemoveCache deletes the downloaded submission file after its
	// notification is sent.
	RemoveCache bool
	// Record observes each processed submission outcome.
	Record func(submissionID int64, status synapse.Status, details string)
}

func NewProcessor(platform Platform, logger *core.Logger, evaluationID int64) *Processor {
	return &Processor{
		platform:     platform,
		logger:       logger,
		EvaluationID: evaluationID,
	}
}

func (p *Processor) Run(ctx context.Context, impl queueProcessor) error {
	evaluation, err := p.platform.GetEvaluation(ctx, p.EvaluationID)
	if err != nil {
		return fmt.Errorf("cannot get evaluation %d: %w", p.EvaluationID, err)
	}
	logger := p.logger.With(
		core.Any("evaluation_id", evaluation.ID),
		core.Any("evaluation_name", evaluation.Name),
	)
	logger.Info("Processing evaluation queue")
	bundles, err := p.platform.GetSubmissionBundles(
		ctx, evaluation.ID, impl.FilterStatus(),
	)
	if err != nil {
		return fmt.Errorf("cannot get submission bundles: %w", err)
	}
	for _, bundle := range bundles {
		if err := p.processSubmission(ctx, impl, evaluation, bundle); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processSubmission(
	ctx context.Context, impl queueProcessor,
	evaluation synapse.Evaluation, bundle synapse.SubmissionBundle,
) error {
	logger := p.logger.With(core.Any("submission_id", bundle.Submission.ID))
	// Bundles omit the file path, refetch to download the file.
	submission, err := p.platform.GetSubmission(
		ctx, bundle.Submission.ID, p.CacheDir,
	)
	if err != nil {
		return fmt.Errorf(
			"cannot get submission %d: %w", bundle.Submission.ID, err,
		)
	}
	result := safeInteract(ctx, impl, submission)
	if result.Skip {
		logger.Info("Skipping submission")
		p.evictCache(logger, submission)
		return nil
	}
	status := impl.SuccessStatus()
	annotations := result.Annotations
	if !result.Valid {
		status = synapse.Invalid
		annotations = annotations.Clone()
		if annotations == nil {
			annotations = synapse.Annotations{}
		}
		annotations[FailureReasonKey] = synapse.StringValue(
			truncate(failureReason(result), failureReasonLimit),
		)
	}
	updated, err := synapse.UpdateStatus(
		bundle.Status, annotations, synapse.UpdateOptions{},
	)
	if err != nil {
		var conflict *synapse.ConflictError
		if !errors.As(err, &conflict) {
			return err
		}
		// A visibility conflict aborts this submission's annotations,
		// the submission itself is demoted to an internal failure.
		logger.Warn(
			"Annotation visibility conflict",
			core.Any("keys", conflict.Keys),
		)
		result = InteractionResult{Err: err, Message: err.Error()}
		status = synapse.Invalid
		updated, err = synapse.UpdateStatus(
			bundle.Status,
			synapse.Annotations{
				FailureReasonKey: synapse.StringValue(
					truncate(err.Error(), failureReasonLimit),
				),
			},
			synapse.UpdateOptions{Force: true},
		)
		if err != nil {
			return err
		}
	}
	updated.Status = status
	if p.DryRun {
		logger.Info("Dry run: skipping status store", core.Any("status", status))
	} else {
		if _, err := p.platform.StoreSubmissionStatus(ctx, updated); err != nil {
			return fmt.Errorf(
				"cannot store status of submission %d: %w", submission.ID, err,
			)
		}
		logger.Info("Stored submission status", core.Any("status", status))
	}
	p.evictCache(logger, submission)
	impl.Notify(ctx, evaluation, submission, result)
	if p.Record != nil {
		p.Record(submission.ID, status, failureReason(result))
	}
	return nil
}

// evictCache removes the downloaded submission file, tolerating a
// file already gone.
func (p *Processor) evictCache(logger *core.Logger, submission synapse.Submission) {
	if !p.RemoveCache || submission.FilePath == "" {
		return
	}
	if err := os.Remove(submission.FilePath); err != nil && !os.IsNotExist(err) {
		logger.Warn(
			"Cannot remove cached submission file",
			core.Any("error", err.Error()),
		)
	}
}

// safeInteract demotes panics of validation and scoring callables to
// an invalid outcome.
func safeInteract(
	ctx context.Context, impl queueProcessor, submission synapse.Submission,
) (result InteractionResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("interaction panic: %v", r)
			result = InteractionResult{Err: err, Message: err.Error()}
		}
	}()
	return impl.Interact(ctx, submission)
}

func failureReason(result InteractionResult) string {
	if result.Valid {
		return ""
	}
	if result.Message != "" {
		return result.Message
	}
	if result.Err != nil {
		return result.Err.Error()
	}
	return "submission is invalid"
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
