// Package remote provides a client for a running toolmeter daemon.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/theirongolddev/toolmeter/internal/daemon"
	"github.com/theirongolddev/toolmeter/internal/model"
)

const (
	requestTimeout = 5 * time.Second
	maxBodySize    = 32 << 20 // 32 MB, room for a report over many tools
)

var (
	// ErrUnreachable indicates the daemon could not be contacted.
	ErrUnreachable = errors.New("remote: daemon unreachable")
	// ErrBadRequest indicates the daemon rejected the request.
	ErrBadRequest = errors.New("remote: bad request")
	// ErrResponseTooLarge indicates a response body over the client's limit.
	ErrResponseTooLarge = errors.New("remote: response too large")
)

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	maxBody int64
}

// NewClient creates a client for the daemon at addr ("host:port" or a full
// http URL). Returns nil if addr is empty.
func NewClient(addr string) *Client {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{},
		maxBody: maxBodySize,
	}
}

// Status returns the daemon's runtime status.
func (c *Client) Status(ctx context.Context) (*daemon.Status, error) {
	var st daemon.Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Report returns the daemon's current analytics report.
func (c *Client) Report(ctx context.Context) (*model.Report, error) {
	var r model.Report
	if err := c.do(ctx, http.MethodGet, "/v1/report", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Record sends one invocation to the daemon and returns the stored event.
func (c *Client) Record(ctx context.Context, req daemon.IngestRequest) (*model.Event, error) {
	var ev model.Event
	if err := c.do(ctx, http.MethodPost, "/v1/events", req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// PushReadings merges metric readings into the daemon's alert inputs.
func (c *Client) PushReadings(ctx context.Context, readings map[string]float64) error {
	return c.do(ctx, http.MethodPost, "/v1/metrics", readings, nil)
}

// Check asks the daemon to evaluate its rules now.
func (c *Client) Check(ctx context.Context) ([]model.Alert, error) {
	var alerts []model.Alert
	if err := c.do(ctx, http.MethodPost, "/v1/alerts/check", nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	//nolint:gosec // URL is the locally configured daemon address
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("remote: reading response: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, path, c.maxBody)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w: %s", ErrBadRequest, e.Error)
		}
		return fmt.Errorf("%w: status %d", ErrBadRequest, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("remote: parsing %s: %w", path, err)
	}
	return nil
}
