package whttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			w.Write([]byte("<html><head><title>\n  공지사항 \n</title></head><body>ok</body></html>"))
		case "/old":
			http.Redirect(w, r, "/page", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c, err := NewClient(Options{UserAgent: "test-agent", Retries: -1})
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Get(context.Background(), ts.URL+"/old")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if res.HTTPTitle != "공지사항" {
		t.Fatalf("unexpected title %q", res.HTTPTitle)
	}
	if res.FinalURL != ts.URL+"/page" {
		t.Fatalf("expected final URL after redirect, got %s", res.FinalURL)
	}

	res, err = c.Get(context.Background(), ts.URL+"/missing")
	if err != nil {
		t.Fatalf("a 404 is a response, not an error: %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestGet_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c, err := NewClient(Options{Timeout: 50 * time.Millisecond, Retries: -1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), ts.URL); err == nil {
		t.Fatal("expected a hung page load to time out")
	}
}

func TestNewClient_BadProxy(t *testing.T) {
	if _, err := NewClient(Options{Proxy: "://bad"}); err == nil {
		t.Fatal("expected an invalid proxy to be rejected")
	}
}
