package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustEntries(t *testing.T, feed string, items ...EntryItem) []Entry {
	t.Helper()
	ents, err := BuildEntries(feed, items)
	if err != nil {
		t.Fatalf("build entries: %v", err)
	}
	return ents
}

func countByType(changes []Change) map[string]int {
	out := map[string]int{}
	for _, c := range changes {
		out[c.ChangeType]++
	}
	return out
}

func TestUpsertFeedEntries_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first := mustEntries(t, "notices",
		EntryItem{Link: "https://board.example/bbs/board.php?bo_table=notice&wr_id=1", Title: "one", Content: "<p>1</p>"},
		EntryItem{Link: "https://board.example/bbs/board.php?bo_table=notice&wr_id=2", Title: "two", Content: "<p>2</p>"},
	)
	changes, err := db.UpsertFeedEntries(ctx, NewRunID(), "notices", first)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if got := countByType(changes)[ChangeAdded]; got != 2 {
		t.Fatalf("expected 2 added, got %d (%v)", got, changes)
	}

	// Same data again: nothing changes.
	changes, err = db.UpsertFeedEntries(ctx, NewRunID(), "notices", first)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes for identical data, got %v", changes)
	}

	second := mustEntries(t, "notices",
		EntryItem{Link: "https://board.example/bbs/board.php?bo_table=notice&wr_id=2", Title: "two", Content: "<p>2 edited</p>"},
		EntryItem{Link: "https://board.example/bbs/board.php?bo_table=notice&wr_id=3", Title: "three"},
	)
	changes, err = db.UpsertFeedEntries(ctx, NewRunID(), "notices", second)
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	counts := countByType(changes)
	if counts[ChangeAdded] != 1 || counts[ChangeUpdated] != 1 || counts[ChangeRemoved] != 1 {
		t.Fatalf("unexpected changes %v", changes)
	}

	stored, err := db.ListEntries(ctx, "notices")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(stored))
	}
}

func TestUpsertFeedEntries_RefusesWipe(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ents := mustEntries(t, "quests", EntryItem{Link: "https://board.example/q?wr_id=9", Title: "quest"})
	if _, err := db.UpsertFeedEntries(ctx, NewRunID(), "quests", ents); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := db.UpsertFeedEntries(ctx, NewRunID(), "quests", nil); !errors.Is(err, ErrAbortingWipe) {
		t.Fatalf("expected ErrAbortingWipe, got %v", err)
	}
	has, err := db.HasEntries(ctx, "quests")
	if err != nil || !has {
		t.Fatalf("expected entries to survive, has=%v err=%v", has, err)
	}

	// An empty feed with no history is fine.
	if _, err := db.UpsertFeedEntries(ctx, NewRunID(), "patchnotes", nil); err != nil {
		t.Fatalf("empty feed without history: %v", err)
	}
}

func TestFeedsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	link := "https://board.example/p?wr_id=1"
	if _, err := db.UpsertFeedEntries(ctx, NewRunID(), "notices", mustEntries(t, "notices", EntryItem{Link: link, Title: "n"})); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertFeedEntries(ctx, NewRunID(), "patchnotes", mustEntries(t, "patchnotes", EntryItem{Link: link, Title: "p"})); err != nil {
		t.Fatal(err)
	}
	all, err := db.ListEntries(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected one entry per feed, got %d", len(all))
	}
}

func TestLogChangesAndListRecent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := db.LogChanges(ctx, []Change{
		{OccurredAt: base, Feed: "notices", Link: "a", Title: "A", ChangeType: ChangeAdded},
		{OccurredAt: base.Add(time.Minute), Feed: "notices", Link: "b", Title: "B", ChangeType: ChangeRemoved},
	})
	if err != nil {
		t.Fatalf("log changes: %v", err)
	}
	got, err := db.ListRecentChanges(ctx, 10)
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	if len(got) != 2 || got[0].Link != "b" || got[1].Link != "a" {
		t.Fatalf("expected newest first, got %v", got)
	}
	if !got[1].OccurredAt.Equal(base) {
		t.Fatalf("timestamp round trip: got %v want %v", got[1].OccurredAt, base)
	}

	one, err := db.ListRecentChanges(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("expected limit to apply, got %v err=%v", one, err)
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	run := NewRunID()
	ents := mustEntries(t, "pets",
		EntryItem{Link: "https://board.example/pets?wr_id=1", Title: "a"},
		EntryItem{Link: "https://board.example/pets?wr_id=2", Title: "b"},
	)
	changes, err := db.UpsertFeedEntries(ctx, run, "pets", ents)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.LogChanges(ctx, changes); err != nil {
		t.Fatal(err)
	}
	started := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
	if err := db.RecordRun(ctx, Run{ID: run, Feed: "pets", StartedAt: started, LastUpdated: started, EntryCount: 2, ChangeCount: len(changes)}); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 feed, got %v", stats)
	}
	s := stats[0]
	if s.Feed != "pets" || s.EntryCount != 2 || s.ChangeCount != 2 || s.RunCount != 1 || !s.LastRun.Equal(started) {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestBuildEntries(t *testing.T) {
	ents, err := BuildEntries("notices", []EntryItem{
		{Link: "https://Board.Example:443/bbs/board.php?wr_id=5&bo_table=notice&page=2#c", Title: "x", Content: "body"},
		{Link: "https://board.example/bbs/board.php?bo_table=notice&wr_id=5", Title: "dup"},
		{Link: "", Title: "no link"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 {
		t.Fatalf("expected 1 entry after normalization, got %v", ents)
	}
	if ents[0].Link != "https://board.example/bbs/board.php?bo_table=notice&wr_id=5" {
		t.Fatalf("unexpected normalized link %q", ents[0].Link)
	}
	if ents[0].ContentHash == "" {
		t.Fatal("expected content hash")
	}
	if _, err := BuildEntries("", nil); err == nil {
		t.Fatal("expected error for empty feed")
	}
}
