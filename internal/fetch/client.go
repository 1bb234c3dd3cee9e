// Package fetch downloads bundle payloads from the remote content root.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Common errors.
var (
	ErrNotFound         = errors.New("fetch: resource not found")
	ErrForbidden        = errors.New("fetch: access forbidden")
	ErrServerError      = errors.New("fetch: server error")
	ErrStalled          = errors.New("fetch: transfer stalled")
	ErrUnexpectedEOF    = errors.New("fetch: body shorter than content length")
	ErrUnexpectedStatus = errors.New("fetch: unexpected status")
)

// Options configures the client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// Timeout bounds a whole request. Zero means no overall limit; the stall
	// timeout still applies.
	Timeout time.Duration

	// StallTimeout aborts a transfer when no bytes arrive for this long.
	// Zero disables the check.
	StallTimeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 16,
		StallTimeout:        20 * time.Second,
		UserAgent:           "bundled/1",
	}
}

// ProgressFunc receives the number of bytes read so far and the expected total
// (-1 when unknown).
type ProgressFunc func(read, total int64)

// Client fetches whole payloads over HTTP.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 16
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		client: &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Get downloads url into memory, reporting progress as bytes arrive.
func (c *Client) Get(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	var lastProgress atomic.Int64
	lastProgress.Store(time.Now().UnixNano())
	if c.opts.StallTimeout > 0 {
		go c.watchStall(ctx, cancel, &lastProgress)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.cause(ctx, err)
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode, resp.Status); err != nil {
		return nil, err
	}

	total := resp.ContentLength
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	chunk := make([]byte, 32*1024)
	var read int64
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			read += int64(n)
			lastProgress.Store(time.Now().UnixNano())
			if onProgress != nil {
				onProgress(read, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, c.cause(ctx, rerr)
		}
	}
	if total > 0 && read < total {
		return nil, fmt.Errorf("%w: %d/%d", ErrUnexpectedEOF, read, total)
	}
	return buf.Bytes(), nil
}

func (c *Client) watchStall(ctx context.Context, cancel context.CancelCauseFunc, last *atomic.Int64) {
	interval := c.opts.StallTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if now.Sub(time.Unix(0, last.Load())) >= c.opts.StallTimeout {
				cancel(ErrStalled)
				return
			}
		}
	}
}

// cause prefers the cancellation cause (e.g. ErrStalled) over the transport error.
func (c *Client) cause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("%w: %v", cause, err)
	}
	return err
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return ErrForbidden
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrServerError, status)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, status)
	}
}
