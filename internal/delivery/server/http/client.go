package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	agent "offload/internal/domain/agent/ports/agent"
)

// Client reads a remote status API. It is the reconnect path for callers
// that returned control while work was still running.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(addr string, httpClient *http.Client) (*Client, error) {
	raw := strings.TrimSpace(addr)
	if raw == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if strings.HasPrefix(raw, ":") {
		raw = "localhost" + raw
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: base, http: httpClient}, nil
}

// Report fetches the status report.
func (c *Client) Report(ctx context.Context) (agent.StatusReport, error) {
	var report agent.StatusReport
	err := c.do(ctx, http.MethodGet, "/api/tasks", &report)
	return report, err
}

// Task fetches one task's progress snapshot.
func (c *Client) Task(ctx context.Context, number int) (TaskResponse, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+strconv.Itoa(number), &resp)
	return resp, err
}

// Cancel asks the server to cancel a task.
func (c *Client) Cancel(ctx context.Context, number int, force bool) (CancelResponse, error) {
	var resp CancelResponse
	path := fmt.Sprintf("/api/tasks/%d/cancel?force=%t", number, force)
	err := c.do(ctx, http.MethodPost, path, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
