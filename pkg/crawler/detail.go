package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DetailRecord is a listing entry enriched with its detail page fields.
type DetailRecord struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Date        string `json:"date"`
	ContentHTML string `json:"contentHtml"`
}

// FailurePolicy decides what happens when one detail page fails.
type FailurePolicy int

const (
	// IsolateFailures logs the failure, keeps the entry with empty detail
	// fields and moves on.
	IsolateFailures FailurePolicy = iota
	// AbortOnFailure stops the crawl at the first failing entry.
	AbortOnFailure
)

// ContentStrategy locates the body of a detail page. When Narrow is set and
// matches inside Selector, the narrower element is used instead.
type ContentStrategy struct {
	Selector string
	Narrow   string
	Outer    bool
}

// DetailCrawler visits each entry's detail page sequentially.
type DetailCrawler struct {
	Fetcher Fetcher
	Feed    Feed
	Policy  FailurePolicy
	Sleep   SleepFunc
	Log     Logger
}

func (c *DetailCrawler) Crawl(ctx context.Context, entries []ListingEntry) ([]DetailRecord, error) {
	log := orNop(c.Log)
	sleep := orSleep(c.Sleep)

	records := make([]DetailRecord, 0, len(entries))
	for i, e := range entries {
		log.Infof("[%s] [%d/%d] %s", c.Feed.Name, i+1, len(entries), e.Title)

		rec := DetailRecord{ID: EntryID(e.Link, i+1), Title: e.Title, Link: e.Link}
		page, err := c.Fetcher.Fetch(ctx, e.Link)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			detailsFetched.WithLabelValues(c.Feed.Name, "error").Inc()
			if c.Policy == AbortOnFailure {
				return records, fmt.Errorf("detail %s: %w", e.Link, err)
			}
			log.Warnf("[%s] detail %s failed: %v", c.Feed.Name, e.Link, err)
		} else {
			detailsFetched.WithLabelValues(c.Feed.Name, "ok").Inc()
			rec.Date = ExtractDate(page, c.Feed.DateSelectors)
			rec.ContentHTML = ExtractContent(page, c.Feed.Content)
		}
		records = append(records, rec)

		if i < len(entries)-1 {
			if err := sleep(ctx, c.Feed.EntryDelay); err != nil {
				return records, err
			}
		}
	}
	return records, nil
}

// ExtractDate returns the trimmed text of the first element matching one of
// selectors, or "" when none is present.
func ExtractDate(page *Page, selectors []string) string {
	if len(selectors) == 0 {
		selectors = []string{"time"}
	}
	for _, sel := range selectors {
		if s := page.Doc.Find(sel).First(); s.Length() > 0 {
			return strings.TrimSpace(s.Text())
		}
	}
	return ""
}

// ExtractContent tries strategies in order and returns the HTML of the first
// one whose target exists.
func ExtractContent(page *Page, strategies []ContentStrategy) string {
	for _, st := range strategies {
		s := page.Doc.Find(st.Selector).First()
		if s.Length() == 0 {
			continue
		}
		if st.Narrow != "" {
			if n := s.Find(st.Narrow).First(); n.Length() > 0 {
				s = n
			}
		}
		var (
			out string
			err error
		)
		if st.Outer {
			out, err = goquery.OuterHtml(s)
		} else {
			out, err = s.Html()
		}
		if err != nil {
			continue
		}
		return strings.TrimSpace(out)
	}
	return ""
}

var wrIDPattern = regexp.MustCompile(`wr_id=(\d+)`)

// EntryID reads the leading digits of the wr_id in link, falling back to pos.
func EntryID(link string, pos int) int {
	m := wrIDPattern.FindStringSubmatch(link)
	if m == nil {
		return pos
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return pos
	}
	return id
}
