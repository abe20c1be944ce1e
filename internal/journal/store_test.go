package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	if err := store.BeginRun(ctx, "run-1", started); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", started.Add(time.Minute), 3, 1, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.Processed != 3 || run.Skipped != 1 || run.Failed != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished timestamp missing")
	}
}

func TestRecordAndListItems(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	records := []ItemRecord{
		{RunID: "run-1", Kind: "clip", Code: "aaa", Stages: []string{"metadata", "media"}, HitQuota: true, Status: StatusDone},
		{RunID: "run-1", Kind: "post", Code: "bbb", Status: StatusSkipped},
		{RunID: "run-1", Kind: "clip", Code: "ccc", Status: StatusFailed, Error: "transient failure"},
	}
	for _, rec := range records {
		if err := store.RecordItem(ctx, rec); err != nil {
			t.Fatalf("RecordItem: %v", err)
		}
	}

	got, err := store.RecentItems(ctx, 10)
	if err != nil {
		t.Fatalf("RecentItems: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	// Most recent first.
	if got[0].Code != "ccc" || got[0].Error != "transient failure" {
		t.Fatalf("unexpected first item: %+v", got[0])
	}
	if got[2].Code != "aaa" || !got[2].HitQuota || len(got[2].Stages) != 2 {
		t.Fatalf("unexpected last item: %+v", got[2])
	}
	if got[1].Stages != nil {
		t.Fatalf("skipped item should have no stages: %+v", got[1])
	}
}
