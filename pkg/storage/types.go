package storage

import "time"

// Change types recorded in the change log.
const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Entry is a single normalized entry of a feed, as stored in the history.
type Entry struct {
	Feed string

	// Link is the normalized absolute link; it identifies the entry within its feed.
	Link        string
	EntryID     int
	Title       string
	Date        string
	ContentHash string
}

// Change captures a single change event for auditing or printing.
type Change struct {
	OccurredAt time.Time
	Feed       string
	Link       string
	Title      string
	ChangeType string // added | updated | removed
}

// EntryItem is a light wrapper for building entries from crawl output.
type EntryItem struct {
	Link    string
	EntryID int
	Title   string
	Date    string
	Content string
}

// Run is one crawl of one feed.
type Run struct {
	ID          string
	Feed        string
	StartedAt   time.Time
	LastUpdated time.Time
	EntryCount  int
	ChangeCount int
}

// FeedStats summarizes the history of one feed.
type FeedStats struct {
	Feed        string
	EntryCount  int
	ChangeCount int
	RunCount    int
	LastRun     time.Time
}
