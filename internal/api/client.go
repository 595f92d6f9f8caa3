package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the daemon does not know the job.
	ErrNotFound = errors.New("job not found")
	// ErrDaemonUnavailable is returned when the daemon cannot be reached.
	ErrDaemonUnavailable = errors.New("daemon unavailable")
)

// requestTimeout bounds ordinary calls; long-polls use the caller's context.
const requestTimeout = 15 * time.Second

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps 404 replies to ErrNotFound.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to a running daemon over HTTP.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient builds a client for bind, which may be host:port or a full URL.
func NewClient(bind, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, token: strings.TrimSpace(token), http: &http.Client{}}
}

// Submit creates a job.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &resp)
	return resp.Job, err
}

// Cancel terminates a running job and reports whether a process was stopped.
func (c *Client) Cancel(ctx context.Context, id string) (bool, error) {
	var resp CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, &resp)
	return resp.Cancelled, err
}

// Remove deletes a job, cancelling it first if it is running.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, nil)
}

// Get fetches one job.
func (c *Client) Get(ctx context.Context, id string) (Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Job, err
}

// List fetches jobs, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]Job, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", status)
	}
	var resp JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &resp)
	return resp.Jobs, err
}

// Events fetches events after since. With wait set the daemon holds the
// request open until an event arrives or its long-poll window ends.
func (c *Client) Events(ctx context.Context, since uint64, wait bool) (EventsResponse, error) {
	query := url.Values{"since": {strconv.FormatUint(since, 10)}}
	if wait {
		query.Set("wait", "1")
	}
	var resp EventsResponse
	err := c.do(ctx, http.MethodGet, "/api/events", query, nil, &resp)
	return resp, err
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if _, ok := ctx.Deadline(); !ok && path != "/api/events" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %v", ErrDaemonUnavailable, c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &Error{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
