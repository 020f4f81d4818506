package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Notifier shows a notification. A notification with the tag of a visible
// one replaces it.
type Notifier interface {
	ShowNotification(ctx context.Context, title string, opts Options) error
}

// Client is an open app window as seen by the background context.
type Client interface {
	URL() string
}

// FocusableClient is a window that can be navigated and brought to front.
type FocusableClient interface {
	Client
	Navigate(ctx context.Context, url string) error
	Focus(ctx context.Context) error
}

// MatchOptions restricts client enumeration.
type MatchOptions struct {
	Type                string
	IncludeUncontrolled bool
}

// Clients enumerates open windows, in host-defined order.
type Clients interface {
	MatchAll(ctx context.Context, opts MatchOptions) ([]Client, error)
}

// WindowOpener is implemented by hosts that can open a new window.
type WindowOpener interface {
	OpenWindow(ctx context.Context, url string) error
}

// DisplayedNotification is a notification the user interacted with.
type DisplayedNotification interface {
	Tag() string
	Data() json.RawMessage
	Close()
}

// Logger abstracts logging; *logrus.Logger and *logrus.Entry satisfy it.
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

// Extendable is the lifetime of one background event. Work registered with
// WaitUntil keeps the event alive; the host must call Wait before tearing
// the context down.
type Extendable struct {
	ctx  context.Context
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func NewExtendable(ctx context.Context) *Extendable {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Extendable{ctx: ctx}
}

// WaitUntil runs op asynchronously and extends the event until it settles.
func (e *Extendable) WaitUntil(op func(ctx context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := op(e.ctx); err != nil {
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		}
	}()
}

// Wait blocks until every registered operation settled and returns their
// failures joined. There is no timeout beyond the event's context.
func (e *Extendable) Wait() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.errs...)
}

// PushEvent carries one push message. Data is nil when the push had no body.
type PushEvent struct {
	*Extendable
	Data []byte
}

// NotificationEvent is a click on, or dismissal of, a notification.
type NotificationEvent struct {
	*Extendable
	Notification DisplayedNotification
	// Action is the chosen action button, "" for a click on the body.
	Action string
}
