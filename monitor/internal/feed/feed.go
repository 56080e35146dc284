// Package feed fetches point-in-time snapshots of a storefront product feed.
//
// Every request carries a cache-defeating token in the limit query parameter
// so intermediary caches can never serve a stale feed. Snapshots are
// immutable once fetched; callers compare them, never mutate them.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// ErrUnavailable is returned when the feed endpoint cannot be reached.
var ErrUnavailable = errors.New("feed: endpoint unavailable")

// ErrTimeout is returned when a feed request exceeds the configured timeout.
var ErrTimeout = errors.New("feed: request timed out")

// ErrMalformed is returned for non-2xx responses and for bodies that do not
// parse as a product snapshot. Callers treat it as transient.
var ErrMalformed = errors.New("feed: malformed snapshot")

// Variant is one purchasable SKU of a product.
type Variant struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
	Option1   string `json:"option1"`
	Option2   string `json:"option2"`
	Option3   string `json:"option3"`
}

// Options returns the non-empty option axis values in declared order.
func (v *Variant) Options() []string {
	opts := make([]string, 0, 3)
	for _, o := range []string{v.Option1, v.Option2, v.Option3} {
		if o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}

// Product is one catalog entry with its variants in feed order.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Snapshot is a point-in-time capture of the catalog feed.
type Snapshot struct {
	Products []Product `json:"products"`
}

// Config configures the feed client.
type Config struct {
	// Timeout is the per-request deadline. Default: 15s.
	Timeout time.Duration
	// MaxBytes limits the response body size. Default: 10MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// Path is the feed endpoint path. Default: /products.json.
	Path string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "affut/1.0"
	}
	if c.Path == "" {
		c.Path = "/products.json"
	}
}

// Client issues feed snapshot requests against one storefront. Safe for
// concurrent use, though a monitor session issues at most one fetch at a time.
type Client struct {
	base   *url.URL
	client *http.Client
	config Config

	// buster is the cache-defeating token, strictly increasing per client.
	buster atomic.Int64
}

// New creates a Client for the storefront at baseURL. If httpClient is nil,
// a dedicated client is used; monitor and checkout normally share one
// cookie-jarred client per session.
func New(baseURL string, httpClient *http.Client, cfg Config) (*Client, error) {
	cfg.defaults()
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("feed: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("feed: base URL must be absolute: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{base: base, client: httpClient, config: cfg}
	c.buster.Store(time.Now().UnixMilli())
	return c, nil
}

// Fetch retrieves one snapshot. The limit parameter doubles as the
// cache-buster, seeded from the wall clock and incremented on every call.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	u := *c.base
	u.Path = c.config.Path
	u.RawQuery = fmt.Sprintf("limit=%d", c.buster.Add(1))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", ErrMalformed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrMalformed, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// A valid feed always carries a products array, even when empty.
	if snap.Products == nil {
		return nil, fmt.Errorf("%w: missing products array", ErrMalformed)
	}
	return &snap, nil
}

func classifyTransportErr(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
