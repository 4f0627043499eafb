package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"battery-observer/src/helpers"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
)

// HomeAssistantNotifier calls a notify service through the hub's REST API.
type HomeAssistantNotifier struct {
	URL     string
	Token   string
	Title   string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

type servicePayload struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

// -----------------------------------------------------------------------------

func NewHomeAssistantNotifier(wsURL, token, service, title string, net interfaces.INetworkManager, log *logger.Logger) (*HomeAssistantNotifier, error) {
	target, err := ServiceURL(wsURL, service)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewLogger(nil, "HomeAssistantNotifier")
	}
	return &HomeAssistantNotifier{
		URL:     target,
		Token:   token,
		Title:   title,
		Network: net,
		Logger:  log,
	}, nil
}

// -----------------------------------------------------------------------------

// ServiceURL derives the REST endpoint of a service from the websocket URL:
// ws becomes http, wss becomes https and the websocket path is replaced by
// /api/services/<domain>/<service>.
func ServiceURL(wsURL, service string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid event source url %q: %w", wsURL, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	domain, name, ok := strings.Cut(service, ".")
	if !ok || domain == "" || name == "" {
		return "", fmt.Errorf("notify service must look like <domain>.<service>, got %q", service)
	}

	base := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(base, "/api/websocket") {
		base = strings.TrimSuffix(base, "/api/websocket")
	} else {
		// supervisor proxy: /core/websocket pairs with /core/api
		base = strings.TrimSuffix(base, "/websocket")
	}
	u.Path = base + "/api/services/" + domain + "/" + name
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// -----------------------------------------------------------------------------

func (n *HomeAssistantNotifier) Name() string {
	return "homeassistant"
}

// -----------------------------------------------------------------------------

// Notify posts message once. Without a token the call is skipped.
func (n *HomeAssistantNotifier) Notify(ctx context.Context, message string) error {
	if n.Token == "" {
		n.Logger.Warning("No token configured, skipping notification: %s", message)
		return nil
	}

	headers := map[string]string{"Authorization": "Bearer " + n.Token}
	payload := servicePayload{Message: message, Title: n.Title}
	if _, err := n.Network.PostJSON(ctx, n.URL, headers, payload); err != nil {
		return helpers.NewNotificationError(fmt.Sprintf("notify via %s", n.URL), err)
	}
	n.Logger.Info("Notification sent: %s", message)
	return nil
}
