package storage

import (
	"net/url"
	"strings"
)

// NormalizeLink canonicalizes an entry link so the same post crawled from
// different listing pages maps to one identity: lower-case host, no default
// port, no fragment, sorted query and the listing-only "page" parameter dropped.
func NormalizeLink(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && u.Port() == "80" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && u.Port() == "443" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if strings.HasSuffix(u.Path, "/") && len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	u.Fragment = ""

	q := u.Query()
	q.Del("page")
	u.RawQuery = q.Encode()
	return u.String()
}
