// Package client is the Go client for the hearthd HTTP API. The CLI and the
// watch UI both sit on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/memory"
	"github.com/hearthlabs/hearth/runtime"
	"github.com/hearthlabs/hearth/trigger"
)

// DefaultAddr is the daemon base URL when none is configured.
const DefaultAddr = "http://localhost:6789"

// Client talks JSON over HTTP to a hearthd daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at addr. A missing scheme defaults to
// http; a zero timeout defaults to 30 seconds.
func New(addr string, timeout time.Duration) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// do issues one request and decodes a 2xx JSON body into out (skipped for
// 204 or nil out). Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&e); decodeErr == nil && e.Error != "" {
			msg = e.Error
		}
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// RegisterTriggerRequest mirrors POST /triggers.
type RegisterTriggerRequest struct {
	Condition   trigger.Condition `json:"condition"`
	Action      json.RawMessage   `json:"action"`
	Owner       string            `json:"owner"`
	Description string            `json:"description,omitempty"`
	TTLSeconds  int               `json:"ttl_seconds,omitempty"`
}

// RegisterTrigger registers a trigger and returns its id.
func (c *Client) RegisterTrigger(ctx context.Context, req RegisterTriggerRequest) (string, error) {
	var resp struct {
		TriggerID string `json:"trigger_id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/triggers", req, &resp); err != nil {
		return "", err
	}
	return resp.TriggerID, nil
}

// ListTriggers returns pending triggers, all owners when owner is empty.
func (c *Client) ListTriggers(ctx context.Context, owner string) ([]*trigger.Trigger, error) {
	path := "/triggers"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var resp struct {
		Triggers []*trigger.Trigger `json:"triggers"`
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Triggers, nil
}

// CancelTrigger cancels a pending trigger on behalf of its owner.
func (c *Client) CancelTrigger(ctx context.Context, id, owner string) error {
	path := fmt.Sprintf("/triggers/%s?owner=%s", url.PathEscape(id), url.QueryEscape(owner))
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// NextDispatch pops the oldest fired dispatch, or nil when the queue is
// empty.
func (c *Client) NextDispatch(ctx context.Context) (*runtime.Dispatch, error) {
	var disp runtime.Dispatch
	status, err := c.do(ctx, http.MethodGet, "/dispatches/next", nil, &disp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &disp, nil
}

// SendDispatch enqueues a manual dispatch without a backing trigger.
func (c *Client) SendDispatch(ctx context.Context, owner string, action json.RawMessage, description string) (*runtime.Dispatch, error) {
	req := struct {
		Owner       string          `json:"owner"`
		Action      json.RawMessage `json:"action"`
		Description string          `json:"description,omitempty"`
	}{Owner: owner, Action: action, Description: description}

	var disp runtime.Dispatch
	if _, err := c.do(ctx, http.MethodPost, "/dispatches", req, &disp); err != nil {
		return nil, err
	}
	return &disp, nil
}

// InteractionAck is the daemon's acknowledgement of a recorded interaction.
type InteractionAck struct {
	RequestIndex int    `json:"request_index"`
	Date         string `json:"date"`
}

// AddInteraction appends one instruction to a user's history. A zero at
// lets the daemon stamp its own time.
func (c *Client) AddInteraction(ctx context.Context, userID, instruction string, at time.Time) (InteractionAck, error) {
	req := struct {
		UserID      string `json:"user_id"`
		Instruction string `json:"instruction"`
		Timestamp   string `json:"timestamp,omitempty"`
	}{UserID: userID, Instruction: instruction}
	if !at.IsZero() {
		req.Timestamp = at.Format(time.RFC3339)
	}

	var ack InteractionAck
	if _, err := c.do(ctx, http.MethodPost, "/memory/interactions", req, &ack); err != nil {
		return InteractionAck{}, err
	}
	return ack, nil
}

// BuildIndex rebuilds one user's search index and returns the record count.
func (c *Client) BuildIndex(ctx context.Context, userID string) (int, error) {
	req := struct {
		UserID string `json:"user_id"`
	}{UserID: userID}

	var resp struct {
		IndexedRecords int `json:"indexed_records"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/memory/index", req, &resp); err != nil {
		return 0, err
	}
	return resp.IndexedRecords, nil
}

// SearchMemory runs a semantic search over a user's indexed history.
func (c *Client) SearchMemory(ctx context.Context, userID, query string, topK int) ([]memory.SearchResult, error) {
	req := struct {
		UserID string `json:"user_id"`
		Query  string `json:"query"`
		TopK   int    `json:"top_k,omitempty"`
	}{UserID: userID, Query: query, TopK: topK}

	var resp struct {
		Results []memory.SearchResult `json:"results"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/memory/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Contains reports whether an instruction appears in a user's history.
func (c *Client) Contains(ctx context.Context, userID, instruction string) (bool, error) {
	path := fmt.Sprintf("/memory/%s/contains?instruction=%s", url.PathEscape(userID), url.QueryEscape(instruction))

	var resp struct {
		Contains bool `json:"contains"`
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Contains, nil
}

// ExportMemory downloads the full-bank snapshot.
func (c *Client) ExportMemory(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/memory/export", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /memory/export: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// ImportMemory restores a snapshot and returns how many users it held.
func (c *Client) ImportMemory(ctx context.Context, snapshot []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/memory/import", bytes.NewReader(snapshot))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST /memory/import: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&e); decodeErr == nil && e.Error != "" {
			msg = e.Error
		}
		return 0, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out struct {
		UsersRestored int `json:"users_restored"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.UsersRestored, nil
}

// GetProfile fetches a user's stored profile. A 404 surfaces as *APIError;
// check with IsNotFound.
func (c *Client) GetProfile(ctx context.Context, userID string) (memory.Profile, error) {
	var resp struct {
		Profile memory.Profile `json:"profile"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// RefreshProfile reruns the profiler for one user and returns the result.
func (c *Client) RefreshProfile(ctx context.Context, userID string) (memory.Profile, error) {
	var resp struct {
		Profile memory.Profile `json:"profile"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/profiles/"+url.PathEscape(userID)+"/refresh", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// ResetResult reports what a reset wiped.
type ResetResult struct {
	CancelledTriggers int `json:"cancelled_triggers"`
	DroppedDispatches int `json:"dropped_dispatches"`
}

// Reset cancels all pending triggers and drains the dispatch queue.
func (c *Client) Reset(ctx context.Context) (ResetResult, error) {
	var out ResetResult
	if _, err := c.do(ctx, http.MethodPost, "/reset", nil, &out); err != nil {
		return ResetResult{}, err
	}
	return out, nil
}

// HealthStatus mirrors the daemon's health payload.
type HealthStatus struct {
	Status string         `json:"status"`
	Poller runtime.Health `json:"poller"`
	Store  string         `json:"store"`
}

// Health fetches daemon health. A degraded daemon answers 503 with a body,
// so that status code is treated as a valid response, not an error.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /healthz: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var health HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &health, nil
}
