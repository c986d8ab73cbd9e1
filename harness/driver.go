package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/openchallenges/harness/config"
	"github.com/openchallenges/harness/core"
	"github.com/openchallenges/harness/journal"
	"github.com/openchallenges/harness/lockfile"
	"github.com/openchallenges/harness/storage"
	"github.com/openchallenges/harness/synapse"
)

// lockName guards against concurrent harness runs on one host.
const lockName = "harness"

// Driver runs the configured queues through a validation or scoring
// pass under the harness lock.
type Driver struct {
	core     *core.Core
	registry *Registry
	logger   *core.Logger
	// ChallengeID overrides the challenge project ID in notifications.
	ChallengeID string
	// EvaluationID restricts the run to one queue, zero runs all.
	EvaluationID int64
	// DryRun disables status writes, archiving and messages.
	DryRun bool
	// RemoveCache deletes downloaded submission files after use.
	RemoveCache bool
	// SendMessages, AcknowledgeReceipt and Notifications gate the
	// corresponding message kinds.
	SendMessages       bool
	AcknowledgeReceipt bool
	Notifications      bool
	// LockDir overrides the lock location, default is the directory
	// of the harness binary.
	LockDir string
	// LockMaxAge bounds how long a stale lock survives.
	LockMaxAge time.Duration
}

func NewDriver(c *core.Core, registry *Registry) *Driver {
	return &Driver{
		core:     c,
		registry: registry,
		logger:   c.Logger(),
	}
}

// Validate runs a validation pass over the configured queues.
func (d *Driver) Validate(ctx context.Context) error {
	return d.run(ctx, "validate")
}

// Score runs a scoring pass over the configured queues.
func (d *Driver) Score(ctx context.Context) error {
	return d.run(ctx, "score")
}

// LinkWriteups archives validated writeups of one queue and
// back-annotates the scored predictions of another.
func (d *Driver) LinkWriteups(
	ctx context.Context, writeupQueueID, predictionQueueID int64, statusKey string,
) error {
	lock, err := d.acquireLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	queue, err := d.findQueue(writeupQueueID)
	if err != nil {
		return err
	}
	linker := NewWriteupLinker(
		d.core.Client, d.logger, writeupQueueID, predictionQueueID,
	)
	linker.StatusKey = statusKey
	linker.JoinKey = queue.JoinKey
	linker.AdminPrincipalID = d.adminPrincipalID()
	linker.DryRun = d.DryRun
	err = d.guard(ctx, func() error { return linker.Run(ctx) })
	if err != nil {
		d.notifyError(ctx, err)
	}
	return err
}

// Archive snapshots the writeup project of one submission.
func (d *Driver) Archive(ctx context.Context, submissionID int64) (string, error) {
	linker := NewWriteupLinker(d.core.Client, d.logger, 0, 0)
	linker.AdminPrincipalID = d.adminPrincipalID()
	return linker.Archive(ctx, submissionID)
}

func (d *Driver) run(ctx context.Context, kind string) error {
	lock, err := d.acquireLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	err = d.guard(ctx, func() error { return d.runQueues(ctx, kind) })
	if err != nil {
		d.notifyError(ctx, err)
	}
	return err
}

func (d *Driver) runQueues(ctx context.Context, kind string) error {
	queues, err := d.loadQueues()
	if err != nil {
		return err
	}
	cacheDir, err := d.cacheDir()
	if err != nil {
		return err
	}
	for _, queue := range queues {
		if d.EvaluationID != 0 && queue.ID != d.EvaluationID {
			continue
		}
		if err := d.runQueue(ctx, kind, queue, cacheDir); err != nil {
			return fmt.Errorf("queue %d: %w", queue.ID, err)
		}
	}
	return nil
}

func (d *Driver) runQueue(
	ctx context.Context, kind string, queue config.Queue, cacheDir string,
) error {
	processor := NewProcessor(d.core.Client, d.logger, queue.ID)
	processor.CacheDir = cacheDir
	processor.DryRun = d.DryRun
	processor.RemoveCache = d.RemoveCache
	var run *journalRun
	if d.core.Journal != nil && !d.DryRun {
		started, err := d.core.Journal.BeginRun(ctx, queue.ID, kind)
		if err != nil {
			return fmt.Errorf("cannot begin journal run: %w", err)
		}
		run = &journalRun{core: d.core, run: started}
		processor.Record = run.record(ctx)
	}
	err := d.runProcessor(ctx, kind, queue, cacheDir, processor)
	if run != nil {
		run.finish(ctx, err)
	}
	return err
}

func (d *Driver) runProcessor(
	ctx context.Context, kind string, queue config.Queue,
	cacheDir string, processor *Processor,
) error {
	messenger := d.messenger()
	goldstandard, err := d.fetchGoldstandard(ctx, queue, cacheDir)
	if err != nil {
		return err
	}
	switch kind {
	case "validate":
		fn, err := d.registry.Validator(queue.Validator)
		if err != nil {
			return err
		}
		validator := NewValidator(d.core.Client, messenger, fn)
		validator.Goldstandard = goldstandard
		validator.ChallengeID = d.ChallengeID
		return processor.Run(ctx, validator)
	case "score":
		if queue.Scorer == "" {
			d.logger.Info(
				"Queue has no scorer, skipping",
				core.Any("evaluation_id", queue.ID),
			)
			return nil
		}
		fn, err := d.registry.Scorer(queue.Scorer)
		if err != nil {
			return err
		}
		scorer := NewScorer(d.core.Client, messenger, fn)
		scorer.Goldstandard = goldstandard
		scorer.ChallengeID = d.ChallengeID
		return processor.Run(ctx, scorer)
	default:
		return fmt.Errorf("unsupported run kind: %q", kind)
	}
}

// fetchGoldstandard materializes the queue goldstandard as a local
// file. With storage configured the goldstandard name is a storage
// key, otherwise it is a local path.
func (d *Driver) fetchGoldstandard(
	ctx context.Context, queue config.Queue, cacheDir string,
) (string, error) {
	if queue.Goldstandard == "" {
		return "", nil
	}
	if d.core.Goldstandards == nil {
		return queue.Goldstandard, nil
	}
	dst := filepath.Join(
		cacheDir,
		fmt.Sprintf("goldstandard-%d%s", queue.ID, filepath.Ext(queue.Goldstandard)),
	)
	if err := storage.Fetch(
		ctx, d.core.Goldstandards, queue.Goldstandard, dst,
	); err != nil {
		return "", fmt.Errorf(
			"cannot fetch goldstandard %q: %w", queue.Goldstandard, err,
		)
	}
	return dst, nil
}

func (d *Driver) messenger() *Messenger {
	messenger := NewMessenger(d.core.Client, d.logger)
	messenger.AdminUserIDs = d.core.Config.AdminUserIDs
	messages := d.core.Config.Messages
	if messages.ChallengeInstructionsURL != "" {
		messenger.Defaults["challenge_instructions_url"] = messages.ChallengeInstructionsURL
	}
	if messages.SupportForumURL != "" {
		messenger.Defaults["support_forum_url"] = messages.SupportForumURL
	}
	if messages.ScoringScript != "" {
		messenger.Defaults["scoring_script"] = messages.ScoringScript
	}
	messenger.DryRun = d.DryRun
	messenger.SendMessages = d.SendMessages
	messenger.AcknowledgeReceipt = d.AcknowledgeReceipt
	messenger.Notifications = d.Notifications
	return messenger
}

func (d *Driver) loadQueues() ([]config.Queue, error) {
	queues := d.core.Config.Queues
	if file := d.core.Config.QueuesFile; file != "" {
		loaded, err := config.LoadQueuesFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("cannot load queues config: %w", err)
		}
		queues = append(queues, loaded...)
	}
	if len(queues) == 0 {
		return nil, fmt.Errorf("no queues configured")
	}
	return queues, nil
}

func (d *Driver) findQueue(id int64) (config.Queue, error) {
	queues, err := d.loadQueues()
	if err != nil {
		return config.Queue{}, err
	}
	for _, queue := range queues {
		if queue.ID == id {
			return queue, nil
		}
	}
	return config.Queue{}, fmt.Errorf("queue %d is not configured", id)
}

func (d *Driver) adminPrincipalID() int64 {
	if ids := d.core.Config.AdminUserIDs; len(ids) > 0 {
		return ids[0]
	}
	return 0
}

func (d *Driver) cacheDir() (string, error) {
	dir := d.core.Config.Platform.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "harness-cache")
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", fmt.Errorf("cannot create cache directory: %w", err)
	}
	return dir, nil
}

func (d *Driver) acquireLock() (*lockfile.Lock, error) {
	maxAge := d.LockMaxAge
	if maxAge == 0 {
		maxAge = lockfile.DefaultMaxAge
	}
	if d.LockDir != "" {
		return lockfile.Acquire(d.LockDir, lockName, maxAge)
	}
	return lockfile.AcquireBeside(lockName, maxAge)
}

// guard demotes panics of the run to errors carrying a stack trace,
// so that administrators get notified about them.
func (d *Driver) guard(ctx context.Context, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("harness panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}

func (d *Driver) notifyError(ctx context.Context, err error) {
	d.logger.Error("Harness run failed", core.Any("error", err.Error()))
	d.messenger().ErrorNotification(ctx, Fields{
		"challenge_synid": d.ChallengeID,
		"message":         err.Error(),
	})
}

// journalRun records submission outcomes of one queue pass.
type journalRun struct {
	core *core.Core
	run  journal.Run
}

func (r *journalRun) record(ctx context.Context) func(int64, synapse.Status, string) {
	return func(submissionID int64, status synapse.Status, details string) {
		if _, err := r.core.Journal.RecordSubmission(
			ctx, r.run.ID, submissionID, string(status), details,
		); err != nil {
			r.core.Logger().Warn(
				"Cannot record submission outcome",
				core.Any("error", err.Error()),
			)
		}
	}
}

func (r *journalRun) finish(ctx context.Context, runErr error) {
	status := "success"
	if runErr != nil {
		status = "error"
	}
	if err := r.core.Journal.FinishRun(ctx, r.run, status); err != nil {
		r.core.Logger().Warn(
			"Cannot finish journal run",
			core.Any("error", err.Error()),
		)
	}
}
