package httpx

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

// Sentinel errors for the two transport-level outcomes. HTTP-level and
// decode-level outcomes carry extra detail and use the typed errors below.
var (
	// ErrTimeout means the deadline elapsed before the response completed.
	ErrTimeout = errors.New("httpx: request timed out")
	// ErrUnreachable means the transport failed before any response:
	// DNS failure, connection refused, reset, and the like.
	ErrUnreachable = errors.New("httpx: upstream unreachable")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: unexpected status %d: %s", e.Code, e.Body)
}

// DecodeError is returned when a 2xx response body fails to parse into
// the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "httpx: malformed response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// DefaultTimeout bounds every request unless the caller overrides it.
const DefaultTimeout = 10 * time.Second

// Client is a small wrapper around http.Client with sane defaults and
// per-call deadlines. Every request runs under a context deadline whose
// cancel func is released on completion regardless of outcome.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   50,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Transport: transport},
		UserAgent: "dashsync/1.0",
		Timeout:   timeout,
	}
}

// Do executes req under a deadline and classifies the outcome. The timeout
// argument overrides the client default when positive. A non-2xx response
// is drained, closed, and returned as *StatusError so callers never have
// to handle the body on the error path.
func (c *Client) Do(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req = req.WithContext(ctx)

	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		cancel()
		return nil, classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	// The deadline must keep covering the body read; tie the cancel to Close.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// classify maps a transport error to the taxonomy. Deadline expiry (ours
// or the transport's own) is a timeout; everything else at this level is
// unreachability.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// GetJSON performs a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, url string, timeout time.Duration, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, req, timeout, out)
}

// PostJSON performs a POST with a JSON body and decodes the response into
// out. out may be nil when the caller only cares about the status.
func (c *Client) PostJSON(ctx context.Context, url string, timeout time.Duration, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(ctx, req, timeout, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, timeout time.Duration, out any) error {
	resp, err := c.Do(ctx, req, timeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
