// Package httpx holds the HTTP client setup and the bounded retry loop shared
// by the catalog client and the HTML importer.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultBackoffs is the wait before each attempt. The first attempt is immediate.
var DefaultBackoffs = []time.Duration{0, 500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// NewClient returns a client with keepalive transport defaults.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError reports a non-2xx response. Body holds at most 4KiB of the response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: bad status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: bad status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Transient reports whether a status code is worth retrying.
func Transient(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// Do sends the request built by newReq, retrying network errors and
// transient statuses once per entry in backoffs. newReq is called per attempt
// so request bodies can be replayed. On success the caller owns resp.Body.
// before, when non-nil, runs ahead of every attempt (rate limiting).
func Do(ctx context.Context, client *http.Client, backoffs []time.Duration, before func(context.Context) error, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	if len(backoffs) == 0 {
		backoffs = []time.Duration{0}
	}
	for i, d := range backoffs {
		last := i == len(backoffs)-1
		if d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if before != nil {
			if err := before(ctx); err != nil {
				return nil, err
			}
		}
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !last {
				continue
			}
			return nil, err
		}
		if Transient(resp.StatusCode) && !last {
			_ = resp.Body.Close()
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{
				Method:     req.Method,
				URL:        req.URL.String(),
				StatusCode: resp.StatusCode,
				Body:       string(b),
			}
		}
		return resp, nil
	}
	return nil, fmt.Errorf("httpx: retries exhausted")
}
