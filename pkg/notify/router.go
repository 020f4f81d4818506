package notify

import (
	"context"
	"strings"
)

// Route outcomes.
const (
	RouteFocused = "focused"
	RouteOpened  = "opened"
	RouteNone    = "none"
)

// ClickRouter sends the user to a notification's target.
type ClickRouter struct {
	Config  Config
	Clients Clients
}

// Route focuses the first enumerated window under the app's base path after
// navigating it to target. Without such a window it opens target in a new
// one when the host can. Host errors are returned unchanged.
func (r *ClickRouter) Route(ctx context.Context, target string) (string, error) {
	clients, err := r.Clients.MatchAll(ctx, MatchOptions{Type: "window", IncludeUncontrolled: true})
	if err != nil {
		return "", err
	}
	for _, c := range clients {
		fc, ok := c.(FocusableClient)
		if !ok || !strings.Contains(c.URL(), r.Config.BasePath) {
			continue
		}
		if err := fc.Navigate(ctx, target); err != nil {
			return "", err
		}
		if err := fc.Focus(ctx); err != nil {
			return "", err
		}
		return RouteFocused, nil
	}

	opener, ok := r.Clients.(WindowOpener)
	if !ok {
		return RouteNone, nil
	}
	if err := opener.OpenWindow(ctx, target); err != nil {
		return "", err
	}
	return RouteOpened, nil
}
