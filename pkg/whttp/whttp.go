package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
	// FinalURL is the URL after redirects, used to resolve relative links.
	FinalURL string
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Proxy     string
	Retries   int
	Timeout   time.Duration
	UserAgent string
}

// Client sends GET-style page requests with retries and a per-request timeout.
// A single Client plays the role of the one browsing session of a crawl run.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
	timeout   time.Duration
}

func NewClient(opts Options) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = opts.Retries
	if opts.Retries < 0 {
		retryClient.RetryMax = 0
	}
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
	}

	c := &Client{
		http:      retryClient,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c, nil
}

// Get is a shorthand for a GET request without custom headers.
func (c *Client) Get(ctx context.Context, rawURL string) (*WHTTPRes, error) {
	return c.SendHTTPRequest(ctx, &WHTTPReq{Method: http.MethodGet, URL: rawURL})
}

// SendHTTPRequest performs the request. The whole exchange, retries included,
// is bounded by the client timeout.
func (c *Client) SendHTTPRequest(ctx context.Context, wReq *WHTTPReq) (wRes *WHTTPRes, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, nil)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-transform")

	// Set custom headers
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes = &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
		FinalURL:   wReq.URL,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		wRes.FinalURL = resp.Request.URL.String()
	}

	if title, ok := getHTMLTitle(wRes.BodyString); ok {
		wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
	}

	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}
