package notify

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryHost is an in-process host: it keeps at most one visible
// notification per tag and a list of windows. It backs the push simulate
// command and tests.
type MemoryHost struct {
	mu      sync.Mutex
	visible map[string]*MemoryNotification
	order   []string
	windows []Client
	opened  []string
	alerts  int
}

func NewMemoryHost(windows ...Client) *MemoryHost {
	return &MemoryHost{visible: make(map[string]*MemoryNotification), windows: windows}
}

// MemoryNotification is a notification shown by a MemoryHost.
type MemoryNotification struct {
	host    *MemoryHost
	Title   string
	Options Options
	// Alerts counts how many times the user was alerted under this tag.
	Alerts int
}

func (n *MemoryNotification) Tag() string           { return n.Options.Tag }
func (n *MemoryNotification) Data() json.RawMessage { return n.Options.Data }

// Close removes the notification if it is still the visible one for its tag.
func (n *MemoryNotification) Close() {
	h := n.host
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.visible[n.Options.Tag]; ok && cur == n {
		delete(h.visible, n.Options.Tag)
		for i, t := range h.order {
			if t == n.Options.Tag {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
}

func (h *MemoryHost) ShowNotification(_ context.Context, title string, opts Options) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, replacing := h.visible[opts.Tag]
	n := &MemoryNotification{host: h, Title: title, Options: opts}
	if replacing {
		n.Alerts = prev.Alerts
	} else {
		h.order = append(h.order, opts.Tag)
	}
	if !replacing || opts.Renotify {
		n.Alerts++
		h.alerts++
	}
	h.visible[opts.Tag] = n
	return nil
}

// Visible returns the visible notifications in the order their tags first appeared.
func (h *MemoryHost) Visible() []*MemoryNotification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*MemoryNotification, 0, len(h.order))
	for _, t := range h.order {
		out = append(out, h.visible[t])
	}
	return out
}

// Notification returns the visible notification for tag.
func (h *MemoryHost) Notification(tag string) (*MemoryNotification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.visible[tag]
	return n, ok
}

// Alerts is the total number of times the user was alerted.
func (h *MemoryHost) Alerts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alerts
}

func (h *MemoryHost) MatchAll(_ context.Context, _ MatchOptions) ([]Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Client(nil), h.windows...), nil
}

// OpenWindow opens a new focused window at url.
func (h *MemoryHost) OpenWindow(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, url)
	h.windows = append(h.windows, &MemoryWindow{url: url, Focused: true})
	return nil
}

// Opened lists URLs opened in new windows.
func (h *MemoryHost) Opened() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.opened...)
}

// MemoryWindow is a focusable window of a MemoryHost.
type MemoryWindow struct {
	mu          sync.Mutex
	url         string
	Focused     bool
	Navigations []string
}

func NewMemoryWindow(url string) *MemoryWindow { return &MemoryWindow{url: url} }

func (w *MemoryWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *MemoryWindow) Navigate(_ context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.url = url
	w.Navigations = append(w.Navigations, url)
	return nil
}

func (w *MemoryWindow) Focus(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Focused = true
	return nil
}
