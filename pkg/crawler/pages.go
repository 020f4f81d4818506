package crawler

import (
	"context"
	"time"
)

// PageFunc extracts the items of one listing page.
type PageFunc[T any] func(page *Page, pageNum int) ([]T, error)

// PageLoop visits listing pages 1..N strictly in order, one at a time.
// A page that fails to load or parse contributes nothing; the loop only
// stops early when ctx is done.
type PageLoop[T any] struct {
	Feed    string
	Fetcher Fetcher
	URLFor  func(pageNum int) string
	Extract PageFunc[T]
	// Key identifies duplicates across the whole run. Nil keeps everything.
	Key   func(T) string
	Delay time.Duration
	Sleep SleepFunc
	Log   Logger
}

func (l PageLoop[T]) Run(ctx context.Context, pages int) ([]T, error) {
	log := orNop(l.Log)
	sleep := orSleep(l.Sleep)

	var out []T
	seen := make(map[string]struct{})

	for pageNum := 1; pageNum <= pages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		items, err := l.fetchPage(ctx, pageNum)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warnf("[%s] page %d failed: %v", l.Feed, pageNum, err)
			pagesFetched.WithLabelValues(l.Feed, "error").Inc()
			items = nil
		} else {
			pagesFetched.WithLabelValues(l.Feed, "ok").Inc()
		}

		added := 0
		for _, it := range items {
			if l.Key != nil {
				k := l.Key(it)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			out = append(out, it)
			added++
		}
		entriesExtracted.WithLabelValues(l.Feed).Add(float64(added))
		log.Infof("[%s] page %d/%d: %d entries (%d new)", l.Feed, pageNum, pages, len(items), added)

		if pageNum < pages {
			if err := sleep(ctx, l.Delay); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (l PageLoop[T]) fetchPage(ctx context.Context, pageNum int) ([]T, error) {
	page, err := l.Fetcher.Fetch(ctx, l.URLFor(pageNum))
	if err != nil {
		return nil, err
	}
	return l.Extract(page, pageNum)
}
