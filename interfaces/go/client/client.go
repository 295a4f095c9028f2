// Package client is a small Go client for the bridge's HTTP API.
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
	"strconv"
	"strings"
	"time"

	"github.com/mithun50/luma-cli/internal/domain"
)

// ErrNotModified is returned by Snapshot when the server's copy matches the given ETag.
var ErrNotModified = errors.New("snapshot not modified")

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 15 * time.Second}}
}

// APIError is the decoded error envelope of a non-2xx response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type Health struct {
	Status       string         `json:"status"`
	CDPConnected bool           `json:"cdpConnected"`
	LoopState    string         `json:"loopState"`
	Uptime       float64        `json:"uptime"`
	HTTPS        bool           `json:"https"`
	Subscribers  map[string]int `json:"subscribers"`
}

type SendResult struct {
	Success bool            `json:"success"`
	Method  string          `json:"method"`
	Details json.RawMessage `json:"details"`
}

// ActionResult is the outcome of a page action. Success=false with Error
// set means the page refused it.
type ActionResult struct {
	Success  bool     `json:"success"`
	Method   string   `json:"method,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Model    string   `json:"model,omitempty"`
	Scrolled *float64 `json:"scrolled,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type AppState struct {
	Mode  string `json:"mode"`
	Model string `json:"model"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
	return out, err
}

// Snapshot fetches the latest snapshot. When etag is non-empty and still
// current, ErrNotModified is returned. The returned string is the new ETag.
func (c *Client) Snapshot(ctx context.Context, etag string) (domain.Snapshot, string, error) {
	var out domain.Snapshot
	hdr := http.Header{}
	if etag != "" {
		hdr.Set("If-None-Match", etag)
	}
	resp, err := c.do(ctx, http.MethodGet, "/snapshot", hdr, nil, &out)
	if err != nil {
		return out, etag, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return out, etag, ErrNotModified
	}
	return out, resp.Header.Get("ETag"), nil
}

func (c *Client) Send(ctx context.Context, message string) (SendResult, error) {
	var out SendResult
	_, err := c.do(ctx, http.MethodPost, "/send", nil, map[string]string{"message": message}, &out)
	return out, err
}

func (c *Client) Stop(ctx context.Context) (ActionResult, error) {
	return c.action(ctx, "/stop", struct{}{})
}

func (c *Client) SetMode(ctx context.Context, mode string) (ActionResult, error) {
	return c.action(ctx, "/set-mode", map[string]string{"mode": mode})
}

func (c *Client) SetModel(ctx context.Context, model string) (ActionResult, error) {
	return c.action(ctx, "/set-model", map[string]string{"model": model})
}

func (c *Client) Click(ctx context.Context, target domain.ClickTarget) (ActionResult, error) {
	return c.action(ctx, "/remote-click", target)
}

// ScrollTo scrolls the desktop chat to a fraction (0..1) of its height.
func (c *Client) ScrollTo(ctx context.Context, percent float64) (ActionResult, error) {
	return c.action(ctx, "/remote-scroll", domain.ScrollTarget{ScrollPercent: &percent})
}

func (c *Client) action(ctx context.Context, path string, body any) (ActionResult, error) {
	var out ActionResult
	_, err := c.do(ctx, http.MethodPost, path, nil, body, &out)
	return out, err
}

func (c *Client) AppState(ctx context.Context) (AppState, error) {
	var out AppState
	_, err := c.do(ctx, http.MethodGet, "/app-state", nil, nil, &out)
	return out, err
}

// Events pages through the retained event log; pass the returned cursor as
// from to continue. An empty cursor means the end was reached.
func (c *Client) Events(ctx context.Context, from string, limit int) ([]domain.EventRecord, string, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Items []domain.EventRecord `json:"items"`
		Next  string               `json:"next"`
	}
	_, err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out.Items, out.Next, err
}

func (c *Client) do(ctx context.Context, method, path string, hdr http.Header, body, out any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}
	if resp.StatusCode >= 300 {
		var env struct {
			Error APIError `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		env.Error.Status = resp.StatusCode
		return resp, &env.Error
	}
	if out == nil {
		return resp, nil
	}
	return resp, json.NewDecoder(resp.Body).Decode(out)
}
