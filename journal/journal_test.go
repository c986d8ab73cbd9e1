package journal

import (
	"context"
	"testing"

	"github.com/openchallenges/harness/config"
)

func testSetup(tb testing.TB) *Store {
	cfg := config.DB{
		Options: config.SQLiteOptions{Path: ":memory:"},
	}
	db, err := cfg.Create()
	if err != nil {
		tb.Fatal("Error: ", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	store := NewStore(db)
	if err := store.Setup(context.Background()); err != nil {
		tb.Fatal("Error: ", err)
	}
	return store
}

func TestRunJournal(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()
	run, err := store.BeginRun(ctx, 9614112, "validate")
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if run.ID == 0 {
		t.Fatal("Expected non-zero run ID")
	}
	if run.Status != "running" {
		t.Fatalf("Unexpected status: %q", run.Status)
	}
	if _, err := store.RecordSubmission(
		ctx, run.ID, 111, "SCORED", "",
	); err != nil {
		t.Fatal("Error: ", err)
	}
	if _, err := store.RecordSubmission(
		ctx, run.ID, 112, "INVALID", "prediction file missing header",
	); err != nil {
		t.Fatal("Error: ", err)
	}
	if err := store.FinishRun(ctx, run, "success"); err != nil {
		t.Fatal("Error: ", err)
	}
	runs, err := store.FindRuns(ctx, 9614112)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != "success" {
		t.Fatalf("Unexpected status: %q", runs[0].Status)
	}
	if runs[0].FinishTime < runs[0].StartTime {
		t.Fatal("Finish time before start time")
	}
	records, err := store.FindRecords(ctx, run.ID)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].SubmissionID != 111 || records[0].Status != "SCORED" {
		t.Fatalf("Unexpected record: %v", records[0])
	}
	if records[1].Details != "prediction file missing header" {
		t.Fatalf("Unexpected details: %q", records[1].Details)
	}
}

func TestRunJournalIsolation(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()
	first, err := store.BeginRun(ctx, 1, "validate")
	if err != nil {
		t.Fatal("Error: ", err)
	}
	second, err := store.BeginRun(ctx, 2, "score")
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if _, err := store.RecordSubmission(ctx, first.ID, 10, "VALIDATED", ""); err != nil {
		t.Fatal("Error: ", err)
	}
	if _, err := store.RecordSubmission(ctx, second.ID, 20, "SCORED", ""); err != nil {
		t.Fatal("Error: ", err)
	}
	records, err := store.FindRecords(ctx, second.ID)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if len(records) != 1 || records[0].SubmissionID != 20 {
		t.Fatalf("Unexpected records: %v", records)
	}
	runs, err := store.FindRuns(ctx, 1)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if len(runs) != 1 || runs[0].Kind != "validate" {
		t.Fatalf("Unexpected runs: %v", runs)
	}
}
