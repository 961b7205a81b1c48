package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"textexpander/internal/expander"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"), Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	s, err := Open(path, Options{BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := ValidateSchema(s.db); err != nil {
		t.Errorf("schema: %v", err)
	}
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestMigrationStatus(t *testing.T) {
	s := openTest(t)

	status, err := GetMigrationStatus(s.db)
	if err != nil {
		t.Fatal(err)
	}
	if status.CurrentVersion != status.LatestVersion || len(status.Pending) != 0 {
		t.Errorf("status = %+v", status)
	}

	// Reopening must not re-apply anything.
	if err := MigrateDB(s.db); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestRollbackMigration(t *testing.T) {
	s := openTest(t)

	if err := RollbackMigration(s.db); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	status, _ := GetMigrationStatus(s.db)
	if status.CurrentVersion != status.LatestVersion-1 || len(status.Pending) != 1 {
		t.Errorf("status after rollback = %+v", status)
	}
	if err := MigrateDB(s.db); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
}

func TestRuns(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	run, err := s.BeginRun(ctx, Run{Version: "1.0", Layout: "de", OS: "linux"})
	if err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.StartedAt.IsZero() {
		t.Fatalf("run = %+v", run)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Layout != "de" || !got.StoppedAt.IsZero() {
		t.Errorf("run = %+v", got)
	}

	stop := run.StartedAt.Add(time.Hour)
	if err := s.EndRun(ctx, run.ID, stop); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRun(ctx, run.ID)
	if !got.StoppedAt.Equal(stop) {
		t.Errorf("stopped = %v", got.StoppedAt)
	}

	if err := s.EndRun(ctx, "missing", stop); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertAndRecent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	err := s.Insert(ctx,
		Entry{Kind: KindExpanded, ShortCode: "brb", Context: "auto", Typed: 13, Deleted: 4, Time: base},
		Entry{Kind: KindUndone, ShortCode: "brb", Context: "auto", Typed: 3, Deleted: 14, Time: base.Add(time.Second)},
		Entry{Kind: KindExpanded, ShortCode: "to", Completion: true, Context: "manual", Typed: 6, Deleted: 0, Time: base.Add(2 * time.Second)},
	)
	if err != nil {
		t.Fatal(err)
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %v", recent)
	}
	if recent[0].ShortCode != "to" || !recent[0].Completion || recent[0].Context != "manual" {
		t.Errorf("newest = %+v", recent[0])
	}
	if recent[1].Kind != KindUndone || recent[1].Deleted != 14 {
		t.Errorf("second = %+v", recent[1])
	}
	if recent[0].ID == "" || recent[0].ID == recent[1].ID {
		t.Error("entries need distinct IDs")
	}
	if !recent[0].Time.Equal(base.Add(2 * time.Second)) {
		t.Errorf("time = %v", recent[0].Time)
	}

	history, err := s.EntriesForShortCode(ctx, "brb")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Kind != KindExpanded {
		t.Errorf("history = %+v", history)
	}
}

func TestInsertNothing(t *testing.T) {
	s := openTest(t)
	if err := s.Insert(context.Background()); err != nil {
		t.Errorf("empty insert: %v", err)
	}
}

func TestStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	var entries []Entry
	add := func(kind, code string, typed int) {
		entries = append(entries, Entry{Kind: kind, ShortCode: code, Context: "auto", Typed: typed,
			Time: base.Add(time.Duration(len(entries)) * time.Minute)})
	}
	add(KindExpanded, "brb", 13)
	add(KindExpanded, "brb", 13)
	add(KindExpanded, "brb", 13)
	add(KindUndone, "brb", 3)
	add(KindExpanded, "omw", 10)
	add(KindCancelled, "omw", 4)
	if err := s.Insert(ctx, entries...); err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginRun(ctx, Run{}); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 6 || st.Expansions != 4 || st.Undos != 1 || st.Cancels != 1 {
		t.Errorf("totals = %+v", st)
	}
	if st.CharsTyped != 49 {
		t.Errorf("chars typed = %d", st.CharsTyped)
	}
	if st.Runs != 1 {
		t.Errorf("runs = %d", st.Runs)
	}
	if !st.First.Equal(base) || !st.Last.Equal(base.Add(5*time.Minute)) {
		t.Errorf("range = %v..%v", st.First, st.Last)
	}
	if len(st.Top) != 1 || st.Top[0].ShortCode != "brb" || st.Top[0].Expansions != 3 {
		t.Errorf("top = %+v", st.Top)
	}

	sc, err := s.ShortCodeStats(ctx, "brb")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Undos != 1 || sc.UndoRate() < 0.33 || sc.UndoRate() > 0.34 {
		t.Errorf("brb = %+v rate %v", sc, sc.UndoRate())
	}
	if _, err := s.ShortCodeStats(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := openTest(t)
	st, err := s.Stats(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 0 || !st.First.IsZero() || len(st.Top) != 0 {
		t.Errorf("empty stats = %+v", st)
	}
}

func TestPrune(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	s.Insert(ctx,
		Entry{Kind: KindExpanded, ShortCode: "a", Context: "auto", Time: old},
		Entry{Kind: KindExpanded, ShortCode: "b", Context: "auto", Time: time.Now()},
	)

	n, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d", n)
	}
	recent, _ := s.Recent(ctx, 10)
	if len(recent) != 1 || recent[0].ShortCode != "b" {
		t.Errorf("remaining = %+v", recent)
	}
}

func TestJournalConsume(t *testing.T) {
	s := openTest(t)
	run, err := s.BeginRun(context.Background(), Run{})
	if err != nil {
		t.Fatal(err)
	}

	j := NewJournal(s, run.ID, nil)
	j.BatchSize = 2
	j.FlushInterval = time.Hour

	acts := make(chan expander.Activity, 8)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	acts <- expander.Activity{Kind: expander.ActivityExpanded, ShortCode: "brb", Typed: 13, Deleted: 4, Time: at}
	acts <- expander.Activity{Kind: expander.ActivityUndone, ShortCode: "brb", Typed: 3, Deleted: 14, Time: at.Add(time.Second)}
	acts <- expander.Activity{Kind: expander.ActivityExpanded, ShortCode: "to", Completion: true,
		Context: expander.ContextManual, Typed: 6, Time: at.Add(2 * time.Second)}
	close(acts)

	if err := j.Consume(context.Background(), acts); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if j.Written() != 3 || j.Failed() != 0 {
		t.Errorf("written=%d failed=%d", j.Written(), j.Failed())
	}

	recent, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent = %+v", recent)
	}
	if recent[0].Context != "manual" || !recent[0].Completion || recent[0].RunID != run.ID {
		t.Errorf("newest = %+v", recent[0])
	}
	if recent[1].Kind != KindUndone {
		t.Errorf("kind = %s", recent[1].Kind)
	}
}

func TestJournalFlushesOnCancel(t *testing.T) {
	s := openTest(t)
	j := NewJournal(s, "", nil)
	j.FlushInterval = time.Hour

	acts := make(chan expander.Activity, 4)
	acts <- expander.Activity{Kind: expander.ActivityCancelled, ShortCode: "omw", Time: time.Now()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Consume(ctx, acts); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	recent, _ := s.Recent(context.Background(), 10)
	if len(recent) != 1 || recent[0].Kind != KindCancelled || recent[0].RunID != "" {
		t.Errorf("recent = %+v", recent)
	}
}
