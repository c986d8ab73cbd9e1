package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/openchallenges/harness/synapse"
)

// Validator transitions RECEIVED submissions to VALIDATED or INVALID.
type Validator struct {
	platform  Platform
	messenger *Messenger
	fn        ValidateFunc
	// Goldstandard contains the local path of the truth data.
	Goldstandard string
	// ChallengeID is included in notification templates.
	ChallengeID string
}

func NewValidator(
	platform Platform, messenger *Messenger, fn ValidateFunc,
) *Validator {
	return &Validator{
		platform:  platform,
		messenger: messenger,
		fn:        fn,
	}
}

func (v *Validator) FilterStatus() synapse.Status {
	return synapse.Received
}

func (v *Validator) SuccessStatus() synapse.Status {
	return synapse.Validated
}

func (v *Validator) Interact(
	ctx context.Context, submission synapse.Submission,
) InteractionResult {
	annotations, message, err := v.fn(ctx, submission, v.Goldstandard)
	if err != nil {
		return InteractionResult{
			Annotations: annotations,
			Message:     err.Error(),
			Err:         err,
		}
	}
	return InteractionResult{
		Valid:       true,
		Annotations: annotations,
		Message:     message,
	}
}

// Notify acknowledges a valid submission to its submitter. Failures
// are routed by kind: rule violations go to the submitter, anything
// else is an internal error and goes to administrators.
func (v *Validator) Notify(
	ctx context.Context, evaluation synapse.Evaluation,
	submission synapse.Submission, result InteractionResult,
) {
	fields := notifyFields(ctx, v.platform, evaluation, submission, v.ChallengeID)
	fields["message"] = result.Message
	if result.Valid {
		v.messenger.ValidationPassed(ctx, []int64{submission.UserID}, fields)
		return
	}
	var violation *RuleViolationError
	if errors.As(result.Err, &violation) {
		fields["message"] = violation.Message
		v.messenger.ValidationFailed(ctx, []int64{submission.UserID}, fields)
		return
	}
	v.messenger.ValidationFailed(ctx, v.messenger.AdminUserIDs, fields)
}

// notifyFields builds the interpolation namespace shared by the
// submission event templates.
func notifyFields(
	ctx context.Context, platform Platform, evaluation synapse.Evaluation,
	submission synapse.Submission, challengeID string,
) Fields {
	username := fmt.Sprintf("%d", submission.UserID)
	if profile, err := platform.GetUserProfile(ctx, submission.UserID); err == nil {
		username = profile.UserName
	}
	if challengeID == "" {
		challengeID = evaluation.ContentSource
	}
	return Fields{
		"username":        username,
		"queue_name":      evaluation.Name,
		"submission_id":   fmt.Sprintf("%d", submission.ID),
		"submission_name": submission.Name,
		"challenge_synid": challengeID,
	}
}
