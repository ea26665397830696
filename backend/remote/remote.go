// Package remote provides the HTTP client for the authoritative task row
// store. The store keeps one row per task, scoped by owner identity, with
// idempotent upserts and hard deletes; the recycle bin is a purely local
// concept layered on top.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"gridtask/backend"
)

// Config holds remote store connection settings.
type Config struct {
	BaseURL    string
	Token      string // bearer token for the owning identity
	MaxRetries int
	RetryDelay time.Duration
}

// Client implements backend.RemoteStore over the row store's REST API.
type Client struct {
	config  Config
	client  *http.Client
	baseURL string
}

// New creates a new remote store client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("remote auth token is required")
	}

	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: cfg.BaseURL,
	}, nil
}

// Close closes the client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// doRequest performs an authenticated request with retry on rate limiting.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	reqURL := c.baseURL + path

	maxRetries := c.config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}
	retryDelay := c.config.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			jsonBody, marshalErr := json.Marshal(body)
			if marshalErr != nil {
				return nil, marshalErr
			}
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, reqErr := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Authorization", "Bearer "+c.config.Token)
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt < maxRetries {
				time.Sleep(retryDelay)
				continue
			}
		}

		break
	}

	return resp, err
}

// FetchAll returns every row owned by the given identity.
func (c *Client) FetchAll(ctx context.Context, ownerID string) ([]backend.RemoteRow, error) {
	path := "/v1/tasks?owner=" + url.QueryEscape(ownerID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("authentication failed: invalid or expired token")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch tasks: status %d", resp.StatusCode)
	}

	var rows []backend.RemoteRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []backend.RemoteRow{}
	}
	return rows, nil
}

// Upsert inserts or replaces a single row. Safe to repeat: delivery to the
// remote store is at-least-once.
func (c *Client) Upsert(ctx context.Context, ownerID string, row backend.RemoteRow) error {
	return c.UpsertAll(ctx, ownerID, []backend.RemoteRow{row})
}

// UpsertAll inserts or replaces a batch of rows in one call.
func (c *Client) UpsertAll(ctx context.Context, ownerID string, rows []backend.RemoteRow) error {
	for i := range rows {
		rows[i].OwnerID = ownerID
	}

	resp, err := c.doRequest(ctx, http.MethodPut, "/v1/tasks", rows)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("authentication failed: invalid or expired token")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("failed to upsert tasks: status %d", resp.StatusCode)
	}
	return nil
}

// Delete removes a row permanently. Deleting a row that no longer exists is
// not an error.
func (c *Client) Delete(ctx context.Context, ownerID, taskID string) error {
	path := "/v1/tasks/" + url.PathEscape(taskID) + "?owner=" + url.QueryEscape(ownerID)
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("authentication failed: invalid or expired token")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("failed to delete task %s: status %d", taskID, resp.StatusCode)
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.RemoteStore = (*Client)(nil)
