package harness

import (
	"context"
	"regexp"

	"github.com/openchallenges/harness/core"
)

// Fields contains values interpolated into message templates.
type Fields map[string]string

type messageTemplate struct {
	subject string
	body    string
}

var (
	validationPassedTemplate = messageTemplate{
		subject: "Submission to {queue_name} received",
		body: `<p>Hello {username},</p>
<p>Your submission ({submission_name}, ID {submission_id}) to the queue
{queue_name} has been received and passed validation. It is now waiting
to be scored.</p>
<p>If you have questions, please ask on the
<a href="{support_forum_url}">support forum</a> or refer to the
<a href="{challenge_instructions_url}">challenge instructions</a>.</p>
<p>Sincerely,<br>{scoring_script}</p>`,
	}
	validationFailedTemplate = messageTemplate{
		subject: "Validation error in submission to {queue_name}",
		body: `<p>Hello {username},</p>
<p>Your submission ({submission_name}, ID {submission_id}) to the queue
{queue_name} failed validation:</p>
<blockquote>{message}</blockquote>
<p>If you have questions, please ask on the
<a href="{support_forum_url}">support forum</a> or refer to the
<a href="{challenge_instructions_url}">challenge instructions</a>.</p>
<p>Sincerely,<br>{scoring_script}</p>`,
	}
	scoringSucceededTemplate = messageTemplate{
		subject: "Submission to {queue_name} scored",
		body: `<p>Hello {username},</p>
<p>Your submission ({submission_name}, ID {submission_id}) to the queue
{queue_name} has been scored:</p>
<blockquote>{message}</blockquote>
<p>If you have questions, please ask on the
<a href="{support_forum_url}">support forum</a> or refer to the
<a href="{challenge_instructions_url}">challenge instructions</a>.</p>
<p>Sincerely,<br>{scoring_script}</p>`,
	}
	scoringErrorTemplate = messageTemplate{
		subject: "Exception while scoring submission to {queue_name}",
		body: `<p>Hello administrator,</p>
<p>Submission {submission_id} by {username} to the queue {queue_name}
of challenge {challenge_synid} raised an exception during scoring:</p>
<blockquote>{message}</blockquote>
<p>Sincerely,<br>{scoring_script}</p>`,
	}
	errorNotificationTemplate = messageTemplate{
		subject: "Exception in {scoring_script}",
		body: `<p>Hello administrator,</p>
<p>The scoring harness for challenge {challenge_synid} raised
an exception:</p>
<pre>{message}</pre>
<p>Sincerely,<br>{scoring_script}</p>`,
	}
)

var templateFieldRegexp = regexp.MustCompile(`\{[a-zA-Z_][a-zA-Z0-9_]*\}`)

// interpolate substitutes {name} placeholders from fields.
//
// Placeholders with no matching field survive as literal text, so
// rendering never fails on an incomplete namespace.
func interpolate(template string, fields Fields) string {
	return templateFieldRegexp.ReplaceAllStringFunc(
		template,
		func(match string) string {
			if value, ok := fields[match[1:len(match)-1]]; ok {
				return value
			}
			return match
		},
	)
}

// Messenger sends templated notifications to submitters and
// administrators.
//
// Dispatch is best-effort: transport failures are logged and
// swallowed so that a messaging outage never aborts the pipeline.
type Messenger struct {
	platform Platform
	logger   *core.Logger
	// AdminUserIDs receive internal error notifications.
	AdminUserIDs []int64
	// Defaults are merged under event fields on every message.
	Defaults Fields
	// DryRun renders and logs messages without dispatching them.
	DryRun bool
	// SendMessages gates submitter and administrator messages about
	// validation failures and scoring outcomes.
	SendMessages bool
	// AcknowledgeReceipt gates the message confirming that a valid
	// submission was received.
	AcknowledgeReceipt bool
	// Notifications gates harness error notifications to
	// administrators.
	Notifications bool
}

func NewMessenger(platform Platform, logger *core.Logger) *Messenger {
	return &Messenger{
		platform: platform,
		logger:   logger,
		Defaults: Fields{"scoring_script": "the scoring harness"},
	}
}

// ValidationPassed notifies the submitter that their submission was
// received and passed validation.
func (m *Messenger) ValidationPassed(
	ctx context.Context, recipients []int64, fields Fields,
) {
	if !m.AcknowledgeReceipt {
		return
	}
	m.send(ctx, "validation_passed", validationPassedTemplate, recipients, fields)
}

// ValidationFailed notifies about a failed validation.
//
// The caller routes the message: the submitter for rule violations,
// administrators for internal errors.
func (m *Messenger) ValidationFailed(
	ctx context.Context, recipients []int64, fields Fields,
) {
	if !m.SendMessages {
		return
	}
	m.send(ctx, "validation_failed", validationFailedTemplate, recipients, fields)
}

// ScoringSucceeded notifies the submitter that their submission was
// scored.
func (m *Messenger) ScoringSucceeded(
	ctx context.Context, recipients []int64, fields Fields,
) {
	if !m.SendMessages {
		return
	}
	m.send(ctx, "scoring_succeeded", scoringSucceededTemplate, recipients, fields)
}

// ScoringError notifies administrators about an internal scoring
// failure.
func (m *Messenger) ScoringError(ctx context.Context, fields Fields) {
	if !m.SendMessages {
		return
	}
	m.send(ctx, "scoring_error", scoringErrorTemplate, m.AdminUserIDs, fields)
}

// ErrorNotification notifies administrators about an uncaught harness
// failure.
func (m *Messenger) ErrorNotification(ctx context.Context, fields Fields) {
	if !m.Notifications {
		return
	}
	m.send(
		ctx, "error_notification", errorNotificationTemplate,
		m.AdminUserIDs, fields,
	)
}

func (m *Messenger) send(
	ctx context.Context, event string, template messageTemplate,
	recipients []int64, fields Fields,
) {
	merged := Fields{}
	for key, value := range m.Defaults {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	subject := interpolate(template.subject, merged)
	body := interpolate(template.body, merged)
	logger := m.logger.With(
		core.Any("event", event),
		core.Any("recipients", recipients),
		core.Any("subject", subject),
	)
	if len(recipients) == 0 {
		logger.Warn("No recipients for message")
		return
	}
	if m.DryRun {
		logger.Info("Dry run: skipping message")
		return
	}
	if err := m.platform.SendMessage(
		ctx, recipients, subject, body, "text/html",
	); err != nil {
		logger.Error("Cannot send message", core.Any("error", err.Error()))
		return
	}
	logger.Info("Sent message")
}
