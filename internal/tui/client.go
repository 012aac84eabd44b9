package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/dealflow/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// APIError is a problem response returned by the daemon.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Title)
}

// Client wraps HTTP calls to the dealflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Detail == "" {
			apiErr.Detail = string(bytes.TrimSpace(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Progress fetches the deal rollup. An empty dt lets the daemon use the
// type the checklist was instantiated with.
func (c *Client) Progress(ctx context.Context, dealID string, dt models.DealType) (*models.DealProgress, error) {
	path := "/deals/" + url.PathEscape(dealID) + "/progress"
	if dt != "" {
		path += "?deal_type=" + url.QueryEscape(string(dt))
	}
	var p models.DealProgress
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListTasks fetches a deal's tasks. Empty status returns all of them.
func (c *Client) ListTasks(ctx context.Context, dealID, status string, overdueOnly bool) ([]models.TaskRecord, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if overdueOnly {
		q.Set("overdue", "true")
	}
	path := "/deals/" + url.PathEscape(dealID) + "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var tasks []models.TaskRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Transition moves a task to status, guarded by version.
func (c *Client) Transition(ctx context.Context, id string, status models.TaskStatus, version int64) (*models.TaskRecord, error) {
	var t models.TaskRecord
	body := map[string]any{"status": status, "version": version}
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/status", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Edit applies a partial update, guarded by version.
func (c *Client) Edit(ctx context.Context, id string, patch models.TaskPatch, version int64) (*models.TaskRecord, error) {
	body := struct {
		models.TaskPatch
		Version int64 `json:"version"`
	}{patch, version}

	var t models.TaskRecord
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// AddTask creates a manual task on a deal.
func (c *Client) AddTask(ctx context.Context, dealID, phase, title string) (*models.TaskRecord, error) {
	var t models.TaskRecord
	body := map[string]any{"phase": phase, "title": title}
	if err := c.do(ctx, http.MethodPost, "/deals/"+url.PathEscape(dealID)+"/tasks", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Ping reports whether the daemon answers its health check.
func (c *Client) Ping(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}
