// Package journal keeps a local record of harness runs and per-submission
// outcomes. The platform remains the authoritative store for submission
// state, the journal only exists for operator auditing and debugging.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/udovin/gosql"
)

const (
	runTable        = "harness_run"
	submissionTable = "harness_run_submission"
)

// Run represents a single invocation of the harness against a queue.
type Run struct {
	ID         int64  `db:"id"`
	QueueID    int64  `db:"queue_id"`
	Kind       string `db:"kind"`
	Status     string `db:"status"`
	StartTime  int64  `db:"start_time"`
	FinishTime int64  `db:"finish_time"`
}

// Record represents the outcome of processing one submission within a run.
type Record struct {
	ID           int64  `db:"id"`
	RunID        int64  `db:"run_id"`
	SubmissionID int64  `db:"submission_id"`
	Status       string `db:"status"`
	Details      string `db:"details"`
	CreateTime   int64  `db:"create_time"`
}

// Store provides access to the run journal.
type Store struct {
	db *gosql.DB
}

func NewStore(db *gosql.DB) *Store {
	return &Store{db: db}
}

// Setup creates journal tables if they do not exist yet.
func (s *Store) Setup(ctx context.Context) error {
	var id string
	switch s.db.Dialect() {
	case gosql.PostgresDialect:
		id = `"id" bigserial NOT NULL PRIMARY KEY`
	default:
		id = `"id" integer NOT NULL PRIMARY KEY AUTOINCREMENT`
	}
	queries := []string{
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (`+
				`%s, `+
				`"queue_id" bigint NOT NULL, `+
				`"kind" varchar(32) NOT NULL, `+
				`"status" varchar(32) NOT NULL, `+
				`"start_time" bigint NOT NULL, `+
				`"finish_time" bigint NOT NULL)`,
			runTable, id,
		),
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (`+
				`%s, `+
				`"run_id" bigint NOT NULL, `+
				`"submission_id" bigint NOT NULL, `+
				`"status" varchar(32) NOT NULL, `+
				`"details" text NOT NULL, `+
				`"create_time" bigint NOT NULL)`,
			submissionTable, id,
		),
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun records the start of a harness invocation.
func (s *Store) BeginRun(ctx context.Context, queueID int64, kind string) (Run, error) {
	run := Run{
		QueueID:   queueID,
		Kind:      kind,
		Status:    "running",
		StartTime: time.Now().Unix(),
	}
	id, err := s.insertRow(
		ctx, runTable,
		[]string{"queue_id", "kind", "status", "start_time", "finish_time"},
		run.QueueID, run.Kind, run.Status, run.StartTime, run.FinishTime,
	)
	if err != nil {
		return Run{}, err
	}
	run.ID = id
	return run, nil
}

// FinishRun marks a run as finished with the given status.
func (s *Store) FinishRun(ctx context.Context, run Run, status string) error {
	_, err := s.db.ExecContext(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "status" = $1, "finish_time" = $2 WHERE "id" = $3`,
			runTable,
		),
		status, time.Now().Unix(), run.ID,
	)
	return err
}

// RecordSubmission records the outcome of one submission within a run.
func (s *Store) RecordSubmission(
	ctx context.Context, runID, submissionID int64, status, details string,
) (Record, error) {
	record := Record{
		RunID:        runID,
		SubmissionID: submissionID,
		Status:       status,
		Details:      details,
		CreateTime:   time.Now().Unix(),
	}
	id, err := s.insertRow(
		ctx, submissionTable,
		[]string{"run_id", "submission_id", "status", "details", "create_time"},
		record.RunID, record.SubmissionID, record.Status,
		record.Details, record.CreateTime,
	)
	if err != nil {
		return Record{}, err
	}
	record.ID = id
	return record, nil
}

// FindRuns returns runs for a queue ordered by start time.
func (s *Store) FindRuns(ctx context.Context, queueID int64) ([]Run, error) {
	query := s.db.Select(runTable)
	query.SetNames("id", "queue_id", "kind", "status", "start_time", "finish_time")
	query.SetWhere(gosql.Column("queue_id").Equal(queueID))
	query.SetOrderBy(gosql.Ascending("id"))
	rawQuery, values := query.Build()
	rows, err := s.db.QueryContext(ctx, rawQuery, values...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.QueueID, &run.Kind, &run.Status,
			&run.StartTime, &run.FinishTime,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindRecords returns submission records for a run.
func (s *Store) FindRecords(ctx context.Context, runID int64) ([]Record, error) {
	query := s.db.Select(submissionTable)
	query.SetNames("id", "run_id", "submission_id", "status", "details", "create_time")
	query.SetWhere(gosql.Column("run_id").Equal(runID))
	query.SetOrderBy(gosql.Ascending("id"))
	rawQuery, values := query.Build()
	rows, err := s.db.QueryContext(ctx, rawQuery, values...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(
			&record.ID, &record.RunID, &record.SubmissionID,
			&record.Status, &record.Details, &record.CreateTime,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) insertRow(
	ctx context.Context, table string, names []string, values ...any,
) (int64, error) {
	var cols, keys string
	for i, name := range names {
		if i > 0 {
			cols += ", "
			keys += ", "
		}
		cols += fmt.Sprintf("%q", name)
		keys += fmt.Sprintf("$%d", i+1)
	}
	switch s.db.Dialect() {
	case gosql.PostgresDialect:
		row := s.db.QueryRowContext(
			ctx,
			fmt.Sprintf(
				`INSERT INTO %q (%s) VALUES (%s) RETURNING "id"`,
				table, cols, keys,
			),
			values...,
		)
		var id int64
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	default:
		res, err := s.db.ExecContext(
			ctx,
			fmt.Sprintf(
				"INSERT INTO %q (%s) VALUES (%s)",
				table, cols, keys,
			),
			values...,
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
}
