package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/poku-e/craftbom/internal/httpx"
)

// Client talks to the remote collection API: GET returns a whole collection,
// POST replaces it. There are no partial updates.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	backoffs []time.Duration
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default keepalive client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps requests per second across all calls of the client.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithBackoffs sets the wait before each attempt; a single zero entry disables retry.
func WithBackoffs(backoffs ...time.Duration) ClientOption {
	return func(c *Client) { c.backoffs = backoffs }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpx.NewClient(25 * time.Second),
		limiter:  rate.NewLimiter(rate.Limit(20), 20),
		backoffs: httpx.DefaultBackoffs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchMaterials(ctx context.Context) ([]Material, error) {
	out := []Material{}
	if err := c.get(ctx, "materials", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchQuests(ctx context.Context) ([]Quest, error) {
	out := []Quest{}
	if err := c.get(ctx, "quests", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch loads both collections in parallel. Either failure fails the fetch.
func (c *Client) Fetch(ctx context.Context) (Catalog, error) {
	var (
		wg   sync.WaitGroup
		ms   []Material
		qs   []Quest
		mErr error
		qErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ms, mErr = c.FetchMaterials(ctx)
	}()
	go func() {
		defer wg.Done()
		qs, qErr = c.FetchQuests(ctx)
	}()
	wg.Wait()
	if err := errors.Join(mErr, qErr); err != nil {
		return Catalog{}, fmt.Errorf("fetch catalog: %w", err)
	}
	return Catalog{Materials: ms, Quests: qs}, nil
}

func (c *Client) SaveMaterials(ctx context.Context, items []Material) error {
	if items == nil {
		items = []Material{}
	}
	return c.post(ctx, "materials", items)
}

func (c *Client) SaveQuests(ctx context.Context, items []Quest) error {
	if items == nil {
		items = []Quest{}
	}
	return c.post(ctx, "quests", items)
}

func (c *Client) url(collection string) string {
	return c.baseURL + "/api/" + collection
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) get(ctx context.Context, collection string, v any) error {
	resp, err := httpx.Do(ctx, c.http, c.backoffs, c.wait, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(collection), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", collection, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, collection string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	resp, err := httpx.Do(ctx, c.http, c.backoffs, c.wait, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(collection), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return resp.Body.Close()
}
