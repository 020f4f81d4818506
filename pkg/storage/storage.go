package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrAbortingWipe is returned when a crawl produced no entries for a feed
// that has history. A board never empties itself, so this is treated as a
// broken crawl and the stored entries are kept.
var ErrAbortingWipe = errors.New("storage: refusing to wipe all entries of a feed")

// Fixed-width UTC timestamps so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_entries (
  id             INTEGER PRIMARY KEY,
  feed           TEXT NOT NULL,
  link           TEXT NOT NULL,
  entry_id       INTEGER NOT NULL DEFAULT 0,
  title          TEXT NOT NULL,
  date           TEXT,
  content_hash   TEXT,
  run_id         TEXT NOT NULL,
  first_seen_at  TEXT NOT NULL,
  last_seen_at   TEXT NOT NULL,
  UNIQUE(feed, link)
);
CREATE INDEX IF NOT EXISTS idx_entries_feed ON feed_entries(feed);
CREATE TABLE IF NOT EXISTS entry_changes (
  id           INTEGER PRIMARY KEY,
  occurred_at  TEXT NOT NULL,
  feed         TEXT NOT NULL,
  link         TEXT NOT NULL,
  title        TEXT NOT NULL,
  change_type  TEXT NOT NULL CHECK (change_type IN ('added','updated','removed'))
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON entry_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_changes_feed ON entry_changes(feed, occurred_at);
CREATE TABLE IF NOT EXISTS crawl_runs (
  id            TEXT PRIMARY KEY,
  feed          TEXT NOT NULL,
  started_at    TEXT NOT NULL,
  last_updated  TEXT NOT NULL,
  entry_count   INTEGER NOT NULL,
  change_count  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_feed ON crawl_runs(feed, started_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// BuildEntries normalizes crawl output into storable entries. Items whose
// link normalizes to an already seen one are dropped.
func BuildEntries(feed string, items []EntryItem) ([]Entry, error) {
	if feed == "" {
		return nil, errors.New("invalid feed name")
	}
	seen := make(map[string]bool, len(items))
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		link := NormalizeLink(it.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, Entry{
			Feed:        feed,
			Link:        link,
			EntryID:     it.EntryID,
			Title:       it.Title,
			Date:        it.Date,
			ContentHash: contentHash(it.Content),
		})
	}
	return out, nil
}

// HasEntries reports whether feed has any stored entries.
func (d *DB) HasEntries(ctx context.Context, feed string) (bool, error) {
	var n int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM feed_entries WHERE feed = ?", feed).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertFeedEntries replaces the stored snapshot of feed with entries and
// returns what changed. Entries not present in this run are removed.
func (d *DB) UpsertFeedEntries(ctx context.Context, runID, feed string, entries []Entry) (changes []Change, err error) {
	now := d.now().UTC()
	stamp := now.Format(timeLayout)

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, "SELECT link, title, date, content_hash FROM feed_entries WHERE feed = ?", feed)
	if err != nil {
		return nil, err
	}
	type existing struct{ Title, Date, Hash string }
	existingMap := make(map[string]existing)
	for rows.Next() {
		var (
			link, title string
			date, hash  sql.NullString
		)
		if err = rows.Scan(&link, &title, &date, &hash); err != nil {
			rows.Close()
			return nil, err
		}
		existingMap[link] = existing{Title: title, Date: date.String, Hash: hash.String}
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	if len(entries) == 0 && len(existingMap) > 0 {
		err = ErrAbortingWipe
		return nil, err
	}

	for _, e := range entries {
		ex, existed := existingMap[e.Link]
		if !existed {
			_, err = tx.ExecContext(ctx, `INSERT INTO feed_entries(feed, link, entry_id, title, date, content_hash, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,?)`,
				feed, e.Link, e.EntryID, e.Title, nullIfEmpty(e.Date), nullIfEmpty(e.ContentHash), runID, stamp, stamp)
			if err != nil {
				return nil, err
			}
			changes = append(changes, Change{OccurredAt: now, Feed: feed, Link: e.Link, Title: e.Title, ChangeType: ChangeAdded})
			existingMap[e.Link] = existing{Title: e.Title, Date: e.Date, Hash: e.ContentHash}
			continue
		}
		if ex.Title != e.Title || ex.Date != e.Date || ex.Hash != e.ContentHash {
			_, err = tx.ExecContext(ctx, `UPDATE feed_entries SET entry_id = ?, title = ?, date = ?, content_hash = ?, run_id = ?, last_seen_at = ? WHERE feed = ? AND link = ?`,
				e.EntryID, e.Title, nullIfEmpty(e.Date), nullIfEmpty(e.ContentHash), runID, stamp, feed, e.Link)
			if err != nil {
				return nil, err
			}
			changes = append(changes, Change{OccurredAt: now, Feed: feed, Link: e.Link, Title: e.Title, ChangeType: ChangeUpdated})
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE feed_entries SET run_id = ?, last_seen_at = ? WHERE feed = ? AND link = ?`, runID, stamp, feed, e.Link)
			if err != nil {
				return nil, err
			}
		}
	}

	// Sweep entries not touched in this run.
	staleRows, err := tx.QueryContext(ctx, "SELECT link, title FROM feed_entries WHERE feed = ? AND run_id != ? ORDER BY id", feed, runID)
	if err != nil {
		return nil, err
	}
	var removed []Change
	for staleRows.Next() {
		c := Change{OccurredAt: now, Feed: feed, ChangeType: ChangeRemoved}
		if err = staleRows.Scan(&c.Link, &c.Title); err != nil {
			staleRows.Close()
			return nil, err
		}
		removed = append(removed, c)
	}
	if err = staleRows.Close(); err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM feed_entries WHERE feed = ? AND run_id != ?`, feed, runID); err != nil {
			return nil, err
		}
		changes = append(changes, removed...)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

// LogChanges appends changes to the change log.
func (d *DB) LogChanges(ctx context.Context, changes []Change) (err error) {
	if len(changes) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, c := range changes {
		_, err = tx.ExecContext(ctx, `INSERT INTO entry_changes(occurred_at, feed, link, title, change_type) VALUES(?,?,?,?,?)`,
			c.OccurredAt.UTC().Format(timeLayout), c.Feed, c.Link, c.Title, c.ChangeType)
		if err != nil {
			return fmt.Errorf("log %s change for %s: %w", c.ChangeType, c.Link, err)
		}
	}
	return tx.Commit()
}

// RecordRun stores the summary of one crawl run.
func (d *DB) RecordRun(ctx context.Context, r Run) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO crawl_runs(id, feed, started_at, last_updated, entry_count, change_count) VALUES(?,?,?,?,?,?)`,
		r.ID, r.Feed, r.StartedAt.UTC().Format(timeLayout), r.LastUpdated.UTC().Format(timeLayout), r.EntryCount, r.ChangeCount)
	return err
}

// ListEntries returns the stored entries of feed, or of every feed when empty.
func (d *DB) ListEntries(ctx context.Context, feed string) ([]Entry, error) {
	q := "SELECT feed, link, entry_id, title, date, content_hash FROM feed_entries"
	args := []interface{}{}
	if feed != "" {
		q += " WHERE feed = ?"
		args = append(args, feed)
	}
	q += " ORDER BY feed, id"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var date, hash sql.NullString
		if err := rows.Scan(&e.Feed, &e.Link, &e.EntryID, &e.Title, &date, &hash); err != nil {
			return nil, err
		}
		e.Date = date.String
		e.ContentHash = hash.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRecentChanges returns the most recent N changes across all feeds.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, feed, link, title, change_type FROM entry_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAt string
		if err := rows.Scan(&occurredAt, &c.Feed, &c.Link, &c.Title, &c.ChangeType); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTime(occurredAt)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

func (d *DB) GetStats(ctx context.Context) ([]FeedStats, error) {
	query := `
		SELECT
			f.feed,
			(SELECT COUNT(*) FROM feed_entries e WHERE e.feed = f.feed),
			(SELECT COUNT(*) FROM entry_changes c WHERE c.feed = f.feed),
			(SELECT COUNT(*) FROM crawl_runs r WHERE r.feed = f.feed),
			COALESCE((SELECT MAX(started_at) FROM crawl_runs r WHERE r.feed = f.feed), '')
		FROM
			(SELECT feed FROM feed_entries UNION SELECT feed FROM crawl_runs) f
		ORDER BY
			f.feed;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []FeedStats
	for rows.Next() {
		var s FeedStats
		var lastRun string
		if err := rows.Scan(&s.Feed, &s.EntryCount, &s.ChangeCount, &s.RunCount, &lastRun); err != nil {
			return nil, err
		}
		s.LastRun = parseTime(lastRun)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
