package harness

import (
	"context"

	"github.com/openchallenges/harness/synapse"
)

// Scorer transitions VALIDATED submissions to SCORED or INVALID.
//
// A scorer with an empty goldstandard skips every submission: writeup
// queues opt out of scoring this way.
type Scorer struct {
	platform  Platform
	messenger *Messenger
	fn        ScoreFunc
	// Goldstandard contains the local path of the truth data.
	Goldstandard string
	// ChallengeID is included in notification templates.
	ChallengeID string
}

func NewScorer(
	platform Platform, messenger *Messenger, fn ScoreFunc,
) *Scorer {
	return &Scorer{
		platform:  platform,
		messenger: messenger,
		fn:        fn,
	}
}

func (s *Scorer) FilterStatus() synapse.Status {
	return synapse.Validated
}

func (s *Scorer) SuccessStatus() synapse.Status {
	return synapse.Scored
}

func (s *Scorer) Interact(
	ctx context.Context, submission synapse.Submission,
) InteractionResult {
	if s.Goldstandard == "" {
		return InteractionResult{Skip: true}
	}
	scores, message, err := s.fn(ctx, submission.FilePath, s.Goldstandard)
	if err != nil {
		return InteractionResult{
			Message: err.Error(),
			Err:     err,
		}
	}
	return InteractionResult{
		Valid:       true,
		Annotations: scores,
		Message:     message,
	}
}

// Notify reports scores to the submitter and scoring failures to
// administrators.
func (s *Scorer) Notify(
	ctx context.Context, evaluation synapse.Evaluation,
	submission synapse.Submission, result InteractionResult,
) {
	fields := notifyFields(ctx, s.platform, evaluation, submission, s.ChallengeID)
	fields["message"] = result.Message
	if result.Valid {
		s.messenger.ScoringSucceeded(ctx, []int64{submission.UserID}, fields)
		return
	}
	s.messenger.ScoringError(ctx, fields)
}
