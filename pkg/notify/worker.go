package notify

import (
	"context"
	"encoding/json"
	"strings"
)

// Options mirrors the notification options accepted by the host.
type Options struct {
	Body     string          `json:"body"`
	Icon     string          `json:"icon"`
	Badge    string          `json:"badge"`
	Vibrate  []int           `json:"vibrate"`
	Data     json.RawMessage `json:"data,omitempty"`
	Tag      string          `json:"tag"`
	Renotify bool            `json:"renotify"`
	Actions  []Action        `json:"actions"`
}

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is a title plus its display options.
type Notification struct {
	Title   string
	Options Options
}

// Config holds the app-specific constants of the flow.
type Config struct {
	// Origin is scheme://host of the app, without trailing slash.
	Origin string
	// BasePath is where the app is mounted, e.g. "/stoneage-light/".
	BasePath string
	// DefaultURL is the in-app route used when a notification has none.
	DefaultURL string
	// DefaultIcon is used for icon and badge when the payload has none.
	DefaultIcon string
}

func DefaultConfig() Config {
	return Config{
		Origin:      "https://localhost",
		BasePath:    "/stoneage-light/",
		DefaultURL:  "/trade",
		DefaultIcon: "/pwa-192x192.png",
	}
}

func vibratePattern() []int { return []int{100, 50, 100} }

func defaultActions() []Action {
	return []Action{
		{Action: ActionOpen, Title: "확인하기"},
		{Action: ActionClose, Title: "닫기"},
	}
}

// Describe builds the notification for p.
func (c Config) Describe(p *PushPayload) Notification {
	icon, badge := p.Icon, p.Badge
	if icon == "" {
		icon = c.DefaultIcon
	}
	if badge == "" {
		badge = c.DefaultIcon
	}
	tag := p.Type
	if tag == "" {
		tag = DefaultTag
	}
	return Notification{
		Title: p.Title,
		Options: Options{
			Body:     p.Body,
			Icon:     icon,
			Badge:    badge,
			Vibrate:  vibratePattern(),
			Data:     p.Data,
			Tag:      tag,
			Renotify: true,
			Actions:  defaultActions(),
		},
	}
}

// TargetURL is the absolute URL a click on a notification with route leads
// to. The app routes on the fragment, so the route goes after '#'.
func (c Config) TargetURL(route string) string {
	if route == "" {
		route = c.DefaultURL
	}
	return strings.TrimRight(c.Origin, "/") + c.BasePath + "#" + route
}

// Present asks the host to show n. Host failures are returned unchanged.
func Present(ctx context.Context, notifier Notifier, n Notification) error {
	return notifier.ShowNotification(ctx, n.Title, n.Options)
}

// Worker wires push and notification events to the host.
type Worker struct {
	cfg      Config
	notifier Notifier
	router   *ClickRouter
	log      Logger
}

func NewWorker(cfg Config, notifier Notifier, clients Clients, log Logger) *Worker {
	if log == nil {
		log = nopLogger{}
	}
	return &Worker{
		cfg:      cfg,
		notifier: notifier,
		router:   &ClickRouter{Config: cfg, Clients: clients},
		log:      log,
	}
}

// OnPush decodes the push and shows its notification inside the event's
// lifetime. A push without data or with malformed data is dropped after
// logging.
func (w *Worker) OnPush(ev *PushEvent) {
	if len(ev.Data) == 0 {
		return
	}
	p, err := DecodePayload(ev.Data)
	if err != nil {
		w.log.Errorf("dropping push: %v", err)
		return
	}
	n := w.cfg.Describe(p)
	w.log.Debugf("showing notification tag=%s title=%q", n.Options.Tag, n.Title)
	ev.WaitUntil(func(ctx context.Context) error {
		return Present(ctx, w.notifier, n)
	})
}

// OnNotificationClick closes the notification and, unless the close action
// was chosen, routes to its target inside the event's lifetime.
func (w *Worker) OnNotificationClick(ev *NotificationEvent) {
	ev.Notification.Close()
	if ev.Action == ActionClose {
		return
	}
	target := w.cfg.TargetURL(dataURL(ev.Notification.Data()))
	ev.WaitUntil(func(ctx context.Context) error {
		outcome, err := w.router.Route(ctx, target)
		if err != nil {
			return err
		}
		w.log.Debugf("notification click routed: %s %s", outcome, target)
		return nil
	})
}

// OnNotificationClose records a dismissal.
func (w *Worker) OnNotificationClose(ev *NotificationEvent) {
	w.log.Infof("notification closed: %s", ev.Notification.Tag())
}
