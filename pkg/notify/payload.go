// Package notify implements the background push flow of the companion app:
// decoding push payloads, presenting notifications grouped by tag, and
// routing notification clicks to an open app window or a new one.
//
// Platform capabilities (showing notifications, enumerating and opening
// windows) are reached through small interfaces so the same logic runs
// against a browser bridge, a desktop notifier or the in-memory host.
package notify

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

const (
	DefaultTag  = "default"
	ActionOpen  = "open"
	ActionClose = "close"
)

// ErrMalformedPayload is returned for push data that is not a JSON object.
var ErrMalformedPayload = errors.New("notify: malformed push payload")

// PushPayload is the decoded body of a push message.
type PushPayload struct {
	Title string
	Body  string
	Icon  string
	Badge string
	// Data is the raw data object, passed through to the notification.
	Data json.RawMessage
	// Type and URL are read from Data.
	Type string
	URL  string
}

// DecodePayload validates raw and reads the fields the worker needs.
func DecodePayload(raw []byte) (*PushPayload, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedPayload
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrMalformedPayload
	}

	p := &PushPayload{
		Title: doc.Get("title").String(),
		Body:  doc.Get("body").String(),
		Icon:  doc.Get("icon").String(),
		Badge: doc.Get("badge").String(),
	}
	if data := doc.Get("data"); data.Exists() && data.Type != gjson.Null {
		p.Data = json.RawMessage(data.Raw)
		p.Type = data.Get("type").String()
		p.URL = data.Get("url").String()
	}
	return p, nil
}

// dataURL reads data.url from a notification's data object.
func dataURL(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	return gjson.GetBytes(data, "url").String()
}
