// Package crawler extracts board listings, detail pages, pets and character
// enrichment data from the game's forum, one page at a time.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stoneage-light/stoneage/pkg/whttp"
)

// Page is a fetched and parsed HTML document.
type Page struct {
	URL   *url.URL
	Title string
	Doc   *goquery.Document
}

// NewPage parses body as the document located at rawURL.
func NewPage(rawURL, body string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", rawURL, err)
	}
	return &Page{URL: u, Title: strings.TrimSpace(doc.Find("title").First().Text()), Doc: doc}, nil
}

// Resolve turns a possibly relative reference found on the page into an
// absolute URL.
func (p *Page) Resolve(ref string) (string, error) {
	u, err := p.URL.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Fetcher loads one page. Implementations are used by a single crawl at a
// time and must bound each navigation themselves.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPFetcher fetches pages with a plain HTTP client and parses them with goquery.
type HTTPFetcher struct {
	Client *whttp.Client
	Log    Logger
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	res, err := f.Client.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("GET %s: HTTP %d", rawURL, res.StatusCode)
	}
	page, err := NewPage(res.FinalURL, res.BodyString)
	if err != nil {
		return nil, err
	}
	if res.HTTPTitle != "" {
		page.Title = res.HTTPTitle
	}
	orNop(f.Log).Debugf("GET %s -> %d (%d bytes) %q", res.FinalURL, res.StatusCode, res.ResponseLength, page.Title)
	return page, nil
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Logger abstracts logging so callers can use logrus or any other logger
// that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func orSleep(s SleepFunc) SleepFunc {
	if s == nil {
		return Sleep
	}
	return s
}
