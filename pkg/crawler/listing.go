package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// ErrContainerMissing is returned when a listing page lacks the element
// that holds its entries.
var ErrContainerMissing = errors.New("listing container not found")

// ListingEntry is a title+link pair found on a listing page.
type ListingEntry struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ListCrawler collects listing entries of a feed across its pages.
type ListCrawler struct {
	Fetcher Fetcher
	Feed    Feed
	Sleep   SleepFunc
	Log     Logger
}

// Crawl visits pages 1..pages and returns the unique entries in first-seen order.
func (c *ListCrawler) Crawl(ctx context.Context, pages int) ([]ListingEntry, error) {
	loop := PageLoop[ListingEntry]{
		Feed:    c.Feed.Name,
		Fetcher: c.Fetcher,
		URLFor:  c.Feed.PageURL,
		Extract: func(page *Page, _ int) ([]ListingEntry, error) { return c.Feed.ExtractEntries(page) },
		Key:     func(e ListingEntry) string { return e.Link },
		Delay:   c.Feed.PageDelay,
		Sleep:   c.Sleep,
		Log:     c.Log,
	}
	entries, err := loop.Run(ctx, pages)
	if entries == nil {
		entries = []ListingEntry{}
	}
	return entries, err
}

// PageURL returns the listing URL of page n.
func (f Feed) PageURL(n int) string {
	if !f.Paginated && n <= 1 {
		return f.ListURL
	}
	u, err := url.Parse(f.ListURL)
	if err != nil {
		return f.ListURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// ExtractEntries returns the accepted links of one listing page, in document order.
func (f Feed) ExtractEntries(page *Page) ([]ListingEntry, error) {
	container := page.Doc.Selection
	if f.Container != "" {
		container = page.Doc.Find(f.Container)
		if container.Length() == 0 {
			if f.RequireContainer {
				return nil, fmt.Errorf("%s: %w", f.Container, ErrContainerMissing)
			}
			return []ListingEntry{}, nil
		}
	}

	entries := []ListingEntry{}
	container.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		link, err := page.Resolve(href)
		if err != nil {
			return
		}
		title := strings.TrimSpace(s.Text())
		if !f.Accept(link, title) {
			return
		}
		if f.SameSiteOnly && !sameSite(page.URL, link) {
			return
		}
		entries = append(entries, ListingEntry{Title: title, Link: link})
	})
	return entries, nil
}

// Accept applies the feed's link marker and title filters.
func (f Feed) Accept(link, title string) bool {
	for _, m := range f.Markers {
		if !strings.Contains(link, m) {
			return false
		}
	}
	if title == "" || utf8.RuneCountInString(title) < f.MinTitleRunes {
		return false
	}
	for _, r := range f.Require {
		if !strings.Contains(title, r) {
			return false
		}
	}
	for _, x := range f.Exclude {
		if strings.Contains(title, x) {
			return false
		}
	}
	return true
}

// sameSite reports whether link belongs to the registrable domain of base.
func sameSite(base *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	a, b := strings.ToLower(base.Hostname()), strings.ToLower(u.Hostname())
	if a == b {
		return true
	}
	da, errA := publicsuffix.Domain(a)
	db, errB := publicsuffix.Domain(b)
	if errA != nil || errB != nil {
		return false
	}
	return da == db
}
