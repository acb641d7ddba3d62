// Package transport wraps the backend HTTP contract: JSON request out,
// status plus optionally-parsed JSON body back, hard per-request timeout.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrTimeout marks a request that exceeded its configured timeout.
var ErrTimeout = errors.New("transport: request timed out")

// Response carries the status, the raw body, and the body parsed as a JSON
// object when it is one. Body is nil for empty or non-object payloads.
type Response struct {
	Status int
	Raw    []byte
	Body   map[string]any
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Client issues JSON requests with the bridge credential headers attached.
type Client struct {
	httpClient *http.Client
	bearer     string
	timeout    time.Duration
}

// New builds a Client. The bearer credential is optional; the token header
// is supplied per request since the token can be reset at runtime.
func New(timeout time.Duration, bearer string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		bearer:     bearer,
		timeout:    timeout,
	}
}

// Request performs one round trip. A non-nil payload is sent as a JSON
// body. The token and bearer headers are independent: each is attached
// when present, and both may be present simultaneously.
func (c *Client) Request(ctx context.Context, method, url, token string, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("transport: encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Bridge-Token", token)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if reqCtx.Err() == context.DeadlineExceeded || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, url)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}

	out := &Response{Status: resp.StatusCode, Raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			out.Body = parsed
		}
		// A non-object or unparsable body is not an error; callers treat
		// it as "no structured content".
	}
	return out, nil
}
