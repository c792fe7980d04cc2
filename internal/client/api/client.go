// Package api implements the unary HTTP transport binding of the sync
// protocol, plus the auxiliary read and polling endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tabsync/tabsync/pkg/api"
)

// ClientAPI is the surface the sync orchestrator and CLI consume.
type ClientAPI interface {
	Sync(ctx context.Context, req *api.SyncRequest) (*api.SyncResponse, error)
	Health(ctx context.Context) (*api.HealthResponse, error)
	PollNotifications(ctx context.Context, since int64) (*api.NotificationsResponse, error)
	GetLists(ctx context.Context) ([]api.List, error)
}

// Client is the HTTP client talking to the sync server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	password   string
	deviceID   string
}

// NewClient creates a new API client. password may be empty for open
// servers; deviceID tags this device's change events on the server.
func NewClient(baseURL, password, deviceID string) *Client {
	return &Client{
		baseURL:  baseURL,
		password: password,
		deviceID: deviceID,
		httpClient: &http.Client{
			// A hung server must not block the sync orchestrator forever.
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Sync performs one protocol round trip over POST /api/sync.
func (c *Client) Sync(ctx context.Context, req *api.SyncRequest) (*api.SyncResponse, error) {
	var resp api.SyncResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/sync", req, &resp); err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	return &resp, nil
}

// Health probes GET /health. It carries no credentials so connectivity can
// be verified before password validation.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequestNoAuth(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// PollNotifications fetches change events after the given checkpoint.
func (c *Client) PollNotifications(ctx context.Context, since int64) (*api.NotificationsResponse, error) {
	var resp api.NotificationsResponse
	path := fmt.Sprintf("/api/notifications/poll?since=%d", since)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("notifications poll failed: %w", err)
	}
	return &resp, nil
}

// GetLists fetches the server's live lists over the read-only endpoint.
func (c *Client) GetLists(ctx context.Context) ([]api.List, error) {
	var resp []api.List
	if err := c.doRequest(ctx, http.MethodGet, "/api/lists", nil, &resp); err != nil {
		return nil, fmt.Errorf("get lists failed: %w", err)
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	return c.do(ctx, method, path, body, result, true)
}

func (c *Client) doRequestNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.do(ctx, method, path, body, result, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, withAuth bool) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withAuth && c.password != "" {
		req.Header.Set("Authorization", "Bearer "+c.password)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Surfaced distinctly so callers prompt for credentials instead of
		// blindly retrying.
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
