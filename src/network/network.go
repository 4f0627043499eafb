package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"battery-observer/src/helpers"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
)

// NetworkManager sends outbound HTTP requests with a per-request timeout. It
// never retries; callers decide what a failure means.
type NetworkManager struct {
	Client *http.Client
	Logger *logger.Logger
}

var _ interfaces.INetworkManager = (*NetworkManager)(nil)

// -----------------------------------------------------------------------------

func NewNetworkManager(timeout time.Duration, log *logger.Logger) *NetworkManager {
	if log == nil {
		log = logger.NewLogger(nil, "NetworkManager")
	}
	return &NetworkManager{
		Client: &http.Client{Timeout: timeout},
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// PostJSON performs a single POST with payload encoded as JSON.
func (nm *NetworkManager) PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, helpers.NewConnectionError(fmt.Sprintf("POST %s", url), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, helpers.NewConnectionError(fmt.Sprintf("read response from %s", url), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		nm.Logger.Debug("POST %s returned %d: %s", url, resp.StatusCode, respBody)
		return respBody, fmt.Errorf("bad status: %d", resp.StatusCode)
	}
	return respBody, nil
}
