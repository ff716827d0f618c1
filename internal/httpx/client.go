// Package httpx is the thin HTTP layer shared by the news source, the gist
// marker store and the webhook sink.
//
// Every call gets its own timeout, carries the steamwatch User-Agent, and maps
// failures onto the apperr taxonomy: transport problems and non-2xx statuses
// become *apperr.TransportError, undecodable bodies become *apperr.ParseError.
// There are no retries.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"steamwatch/internal/apperr"
)

const (
	DefaultUserAgent = "steamwatch/1.0"
	DefaultTimeout   = 30 * time.Second

	maxBodyBytes  = 8 << 20
	maxErrSnippet = 512
)

type Client struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
}

// New returns a client. Zero timeout means DefaultTimeout; empty userAgent
// means DefaultUserAgent. hc may be nil.
func New(hc *http.Client, timeout time.Duration, userAgent string) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{http: hc, userAgent: userAgent, timeout: timeout}
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Do sends one request and returns the response body of a 2xx response.
func (c *Client) Do(ctx context.Context, op, method, url string, header http.Header, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, &apperr.TransportError{Op: op, URL: redact(url), Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperr.TransportError{Op: op, URL: redact(url), Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &apperr.TransportError{Op: op, URL: redact(url), Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.TransportError{
			Op:     op,
			URL:    redact(url),
			Status: resp.StatusCode,
			Body:   snippet(b),
		}
	}
	return b, nil
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, op, url string, header http.Header, out any) error {
	b, err := c.Do(ctx, op, http.MethodGet, url, header, nil)
	if err != nil {
		return err
	}
	return decode(op, b, out)
}

// SendJSON encodes in as the request body. When out is nil the response body is discarded.
func (c *Client) SendJSON(ctx context.Context, op, method, url string, header http.Header, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &apperr.TransportError{Op: op, URL: redact(url), Err: err}
	}
	b, err := c.Do(ctx, op, method, url, header, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(op, b, out)
}

func decode(op string, b []byte, out any) error {
	if err := json.Unmarshal(b, out); err != nil {
		return &apperr.ParseError{What: op + " response", Err: err}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrSnippet {
		s = s[:maxErrSnippet] + "..."
	}
	return s
}

// redact drops the query string and any webhook token path segment so secrets
// never end up in error messages or logs.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.Index(raw, "/webhooks/"); i >= 0 {
		rest := raw[i+len("/webhooks/"):]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return raw[:i] + "/webhooks/" + rest[:j] + "/***"
		}
	}
	return raw
}
