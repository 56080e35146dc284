package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// PropertiesFunc supplies the anti-automation properties a store expects on
// an add-to-cart request. Nil means an empty properties object.
type PropertiesFunc func(ctx context.Context) (map[string]string, error)

// CartedItem confirms a successful add. Carted is the sole authoritative
// signal that checkout initiation is safe to attempt.
type CartedItem struct {
	ProductTitle string
	VariantID    int64
	Carted       bool
}

// Cart enforces hygiene (clear, then verify empty) and performs the atomic
// add-then-verify of one variant.
type Cart struct {
	client     *http.Client
	base       *url.URL
	paths      Paths
	properties PropertiesFunc
	logger     *slog.Logger
}

// NewCart creates a Cart against base, sharing the session's HTTP client.
func NewCart(base *url.URL, client *http.Client, paths Paths, properties PropertiesFunc, logger *slog.Logger) *Cart {
	paths.defaults()
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cart{client: client, base: base, paths: paths, properties: properties, logger: logger}
}

// EnsureEmpty clears the cart and verifies the resulting item count is
// exactly zero. Any non-success response or non-zero count is ErrHygiene and
// the caller must not proceed to add.
func (c *Cart) EnsureEmpty(ctx context.Context) error {
	u := c.base.ResolveReference(&url.URL{Path: c.paths.CartClear})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHygiene, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHygiene, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http %d", ErrHygiene, resp.StatusCode)
	}

	var body struct {
		ItemCount *int `json:"item_count"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrHygiene, err)
	}
	if body.ItemCount == nil || *body.ItemCount != 0 {
		return fmt.Errorf("%w: item count not verified zero", ErrHygiene)
	}

	c.logger.Debug("checkout: cart verified empty")
	return nil
}

// AddVariant adds exactly one unit of variantID and verifies the add by the
// product-title field in the response body. A 2xx status with an unexpected
// body is a failure — the status alone proves nothing.
func (c *Cart) AddVariant(ctx context.Context, variantID int64) (*CartedItem, error) {
	props := map[string]string{}
	if c.properties != nil {
		p, err := c.properties(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: properties: %v", ErrAddToCart, err)
		}
		if p != nil {
			props = p
		}
	}

	payload, err := json.Marshal(map[string]any{
		"form_type":  "product",
		"utf_8":      "✓",
		"quantity":   1,
		"id":         strconv.FormatInt(variantID, 10),
		"properties": props,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrAddToCart, err)
	}

	u := c.base.ResolveReference(&url.URL{Path: c.paths.CartAdd})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddToCart, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddToCart, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", ErrAddToCart, resp.StatusCode)
	}

	var body struct {
		ProductTitle string `json:"product_title"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrAddToCart, err)
	}
	if body.ProductTitle == "" {
		return nil, fmt.Errorf("%w: no product title in response", ErrAddToCart)
	}

	c.logger.Info("checkout: variant carted", "variant", variantID, "product", body.ProductTitle)
	return &CartedItem{ProductTitle: body.ProductTitle, VariantID: variantID, Carted: true}, nil
}
