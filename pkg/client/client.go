package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/depwarden/depwarden/pkg/api"
	"github.com/depwarden/depwarden/pkg/store"
)

// Client is the depwarden daemon SDK client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  BackoffStrategy
	retries  int
}

// NewClient creates a new client.
// endpoint defaults to "http://127.0.0.1:8091" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8091"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: DefaultBackoff(),
		retries: 3,
	}
}

// Check submits a policy and graph for evaluation. Transient failures
// (network errors, 5xx) are retried with exponential backoff.
func (c *Client) Check(ctx context.Context, policyJSON, graphJSON json.RawMessage) (*api.CheckResponse, error) {
	body, err := json.Marshal(api.CheckRequest{Policy: policyJSON, Graph: graphJSON})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal check request: %w", err)
	}

	var resp api.CheckResponse
	err = c.doWithRetry(ctx, http.MethodPost, "/v1/check", body, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns fetches recent runs from the daemon.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*store.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var resp api.RunsResponse
	path := fmt.Sprintf("/v1/runs?limit=%d", limit)
	if err := c.doWithRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetRun fetches one run with its full report.
func (c *Client) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	var run store.Run
	if err := c.doWithRetry(ctx, http.MethodGet, "/v1/runs/"+runID, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (api.HealthResponse, error) {
	var health api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &health); err != nil {
		return api.HealthResponse{}, err
	}
	return health, nil
}

// doWithRetry wraps do with backoff on transient failures.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = c.do(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.retries+1, lastErr)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	_, ok := err.(*transientError)
	return ok
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("daemon unreachable: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &transientError{err: fmt.Errorf("upstream error: %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
