// Package pipeline runs one crawl job end to end: crawl, write the dataset
// file and, when a history database is configured, record what changed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/stoneage-light/stoneage/pkg/crawler"
	"github.com/stoneage-light/stoneage/pkg/dataset"
	"github.com/stoneage-light/stoneage/pkg/storage"
)

// Logger abstracts logging so callers can use logrus or any other logger
// that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Locker serializes history updates across processes.
type Locker interface {
	Lock() error
	Unlock() error
}

// Runner holds everything a job needs.
type Runner struct {
	Fetcher   crawler.Fetcher
	OutputDir string
	Writer    *dataset.Writer
	Policy    crawler.FailurePolicy
	Sleep     crawler.SleepFunc // nil = real sleeps
	DB        *storage.DB       // optional
	Lock      Locker            // optional; held only while the history is updated
	Log       Logger            // optional; nil = no logging

	// OnChanges is called after the history of a job was updated. Nil = no callback.
	OnChanges func(feed string, changes []storage.Change, isFirstRun bool)
}

// Result holds the outcome of one job.
type Result struct {
	Feed        string
	Path        string
	Count       int
	LastUpdated string
	RunID       string
	Changes     []storage.Change
	IsFirstRun  bool
}

func (r *Runner) log() Logger {
	if r.Log == nil {
		return nopLogger{}
	}
	return r.Log
}

func (r *Runner) now() time.Time {
	if r.Writer != nil && r.Writer.Now != nil {
		return r.Writer.Now()
	}
	return time.Now()
}

func (r *Runner) path(job Job) string {
	if job.Path != "" {
		return job.Path
	}
	return filepath.Join(r.OutputDir, job.File)
}

// Run crawls job, writes its dataset and updates the history. A crawl error
// leaves the previous dataset file untouched.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	log := r.log()
	started := r.now()

	out, err := job.Crawl(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", job.Feed, err)
	}

	res := &Result{Feed: job.Feed, Path: r.path(job), Count: out.Dataset.Len(), RunID: storage.NewRunID()}
	if err := r.Writer.Write(res.Path, out.Dataset); err != nil {
		return nil, fmt.Errorf("%s: writing %s: %w", job.Feed, res.Path, err)
	}
	res.LastUpdated = out.Dataset.LastUpdated
	log.Infof("[%s] saved %d records to %s (lastUpdated %s)", job.Feed, res.Count, res.Path, res.LastUpdated)

	if r.DB != nil {
		if err := r.recordHistory(ctx, res, started, out.Items); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) recordHistory(ctx context.Context, res *Result, started time.Time, items []storage.EntryItem) error {
	log := r.log()
	db := r.DB

	if r.Lock != nil {
		if err := r.Lock.Lock(); err != nil {
			return fmt.Errorf("%s: %w", res.Feed, err)
		}
		defer func() {
			if err := r.Lock.Unlock(); err != nil {
				log.Warnf("%v", err)
			}
		}()
	}

	has, err := db.HasEntries(ctx, res.Feed)
	if err != nil {
		log.Warnf("Could not read history for %s: %v", res.Feed, err)
	}
	res.IsFirstRun = err == nil && !has
	if res.IsFirstRun && len(items) > 0 {
		log.Infof("First crawl of %s, populating database...", res.Feed)
	}

	entries, err := storage.BuildEntries(res.Feed, items)
	if err != nil {
		return err
	}
	changes, err := db.UpsertFeedEntries(ctx, res.RunID, res.Feed, entries)
	if err != nil {
		if errors.Is(err, storage.ErrAbortingWipe) {
			log.Warnf("Crawl of %s returned 0 entries but the database has some. Skipping history update.", res.Feed)
			return nil
		}
		return fmt.Errorf("%s: updating history: %w", res.Feed, err)
	}
	res.Changes = changes

	if !res.IsFirstRun {
		if err := db.LogChanges(ctx, changes); err != nil {
			log.Warnf("Could not log changes for %s: %v", res.Feed, err)
		}
	}

	lastUpdated, perr := time.Parse(dataset.TimeLayout, res.LastUpdated)
	if perr != nil {
		lastUpdated = r.now()
	}
	if err := db.RecordRun(ctx, storage.Run{
		ID:          res.RunID,
		Feed:        res.Feed,
		StartedAt:   started,
		LastUpdated: lastUpdated,
		EntryCount:  len(entries),
		ChangeCount: len(changes),
	}); err != nil {
		log.Warnf("Could not record run for %s: %v", res.Feed, err)
	}

	if r.OnChanges != nil {
		r.OnChanges(res.Feed, changes, res.IsFirstRun)
	}
	return nil
}

// RunAll runs jobs one after another. A failing job is logged and does not
// stop the others; the failures are returned joined.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	log := r.log()
	var (
		results []*Result
		errs    []error
	)
	for _, job := range jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := r.Run(ctx, job)
		if err != nil {
			log.Errorf("%v", err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
