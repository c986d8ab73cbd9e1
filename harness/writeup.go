package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openchallenges/harness/core"
	"github.com/openchallenges/harness/synapse"
)

// archivedKey marks a writeup submission status with the ID of its
// archive project.
const archivedKey = "archived"

// WriteupLinker correlates writeup submissions with scored prediction
// submissions of another queue.
//
// Writeups are human-editable projects: the linker archives each
// linked writeup into an immutable copy and back-annotates the
// prediction status with both the writeup and the archive IDs.
type WriteupLinker struct {
	platform Platform
	logger   *core.Logger
	// WriteupQueueID selects the queue accepting writeup projects.
	WriteupQueueID int64
	// PredictionQueueID selects the queue with scored predictions.
	PredictionQueueID int64
	// StatusKey overrides the status column name. Some deployments
	// keep the writeup state in a prediction_file_status annotation.
	StatusKey string
	// JoinKey overrides the column the two queues are joined on.
	JoinKey string
	// AdminPrincipalID is granted full access on archive projects.
	AdminPrincipalID int64
	// Rearchive archives a writeup again even if an archive exists.
	Rearchive bool
	// DryRun disables archiving and status writes.
	DryRun bool
}

func NewWriteupLinker(
	platform Platform, logger *core.Logger,
	writeupQueueID, predictionQueueID int64,
) *WriteupLinker {
	return &WriteupLinker{
		platform:          platform,
		logger:            logger,
		WriteupQueueID:    writeupQueueID,
		PredictionQueueID: predictionQueueID,
	}
}

const queryPageSize = 20

func (l *WriteupLinker) Run(ctx context.Context) error {
	statusKey := l.StatusKey
	if statusKey == "" {
		statusKey = "status"
	}
	joinKey := l.JoinKey
	if joinKey == "" {
		joinKey = "submitterId"
	}
	writeups, err := l.platform.QueryAll(
		ctx,
		fmt.Sprintf(
			"select objectId, submitterId, entityId, %s from evaluation_%d"+
				" where %s == %q",
			archivedKey, l.WriteupQueueID, statusKey, synapse.Validated,
		),
		queryPageSize,
	)
	if err != nil {
		return fmt.Errorf("cannot query writeup queue: %w", err)
	}
	predictions, err := l.platform.QueryAll(
		ctx,
		fmt.Sprintf(
			"select objectId, submitterId from evaluation_%d where %s == %q",
			l.PredictionQueueID, statusKey, synapse.Scored,
		),
		queryPageSize,
	)
	if err != nil {
		return fmt.Errorf("cannot query prediction queue: %w", err)
	}
	writeupByKey := map[string]map[string]string{}
	for _, row := range writeups {
		writeupByKey[row[joinKey]] = row
	}
	for _, row := range predictions {
		if err := l.linkPrediction(ctx, row, writeupByKey[row[joinKey]]); err != nil {
			return err
		}
	}
	return nil
}

func (l *WriteupLinker) linkPrediction(
	ctx context.Context, prediction, writeup map[string]string,
) error {
	logger := l.logger.With(
		core.Any("prediction_id", prediction["objectId"]),
		core.Any("submitter_id", prediction["submitterId"]),
	)
	if writeup == nil || writeup["entityId"] == "" {
		logger.Infof("NO WRITEUP: %s", prediction["submitterId"])
		return nil
	}
	archivedID := writeup[archivedKey]
	if archivedID == "" || l.Rearchive {
		if l.DryRun {
			logger.Info(
				"Dry run: skipping writeup archive",
				core.Any("entity_id", writeup["entityId"]),
			)
			return nil
		}
		writeupSubmissionID, err := strconv.ParseInt(writeup["objectId"], 10, 64)
		if err != nil {
			return fmt.Errorf(
				"invalid writeup submission ID %q: %w", writeup["objectId"], err,
			)
		}
		if archivedID, err = l.Archive(ctx, writeupSubmissionID); err != nil {
			return fmt.Errorf(
				"cannot archive writeup %d: %w", writeupSubmissionID, err,
			)
		}
	}
	predictionID, err := strconv.ParseInt(prediction["objectId"], 10, 64)
	if err != nil {
		return fmt.Errorf(
			"invalid prediction submission ID %q: %w", prediction["objectId"], err,
		)
	}
	status, err := l.platform.GetSubmissionStatus(ctx, predictionID)
	if err != nil {
		return err
	}
	updated, err := synapse.UpdateStatus(
		status,
		synapse.Annotations{
			"writeUp":         synapse.StringValue(writeup["entityId"]),
			"archivedWriteUp": synapse.StringValue(archivedID),
		},
		synapse.UpdateOptions{Force: true},
	)
	if err != nil {
		return err
	}
	if l.DryRun {
		logger.Info("Dry run: skipping status store")
		return nil
	}
	if _, err := l.platform.StoreSubmissionStatus(ctx, updated); err != nil {
		return err
	}
	logger.Info(
		"Linked writeup",
		core.Any("writeup", writeup["entityId"]),
		core.Any("archive", archivedID),
	)
	return nil
}

// Archive snapshots the writeup project of a submission.
//
// Archiving is idempotent: a status already carrying an archive ID is
// returned as is unless Rearchive is set.
func (l *WriteupLinker) Archive(ctx context.Context, submissionID int64) (string, error) {
	submission, err := l.platform.GetSubmission(ctx, submissionID, "")
	if err != nil {
		return "", err
	}
	status, err := l.platform.GetSubmissionStatus(ctx, submissionID)
	if err != nil {
		return "", err
	}
	private, public := synapse.DecodeAnnotations(status.Annotations)
	if !l.Rearchive {
		if archived, ok := public[archivedKey]; ok {
			return archived.String(), nil
		}
		if archived, ok := private[archivedKey]; ok {
			return archived.String(), nil
		}
	}
	project, err := l.platform.GetProject(ctx, submission.EntityID)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf(
		"Archived %s %d %d %s",
		sanitizeProjectName(project.Name),
		time.Now().UnixMilli(),
		submission.ID,
		submission.EntityID,
	)
	archive, err := l.platform.CreateProject(ctx, name)
	if err != nil {
		return "", err
	}
	if l.AdminPrincipalID != 0 {
		if err := l.platform.SetPermissions(
			ctx, archive.ID, l.AdminPrincipalID, synapse.FullAccess,
		); err != nil {
			return "", err
		}
	}
	if err := l.platform.CopyEntity(ctx, submission.EntityID, archive.ID); err != nil {
		return "", err
	}
	updated, err := synapse.UpdateStatus(
		status,
		synapse.Annotations{archivedKey: synapse.StringValue(archive.ID)},
		synapse.UpdateOptions{Force: true},
	)
	if err != nil {
		return "", err
	}
	if _, err := l.platform.StoreSubmissionStatus(ctx, updated); err != nil {
		return "", err
	}
	return archive.ID, nil
}

var projectNameSanitizer = strings.NewReplacer("&", "+", "'", "")

func sanitizeProjectName(name string) string {
	return projectNameSanitizer.Replace(name)
}
