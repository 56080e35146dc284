package checkout

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// browserAccept mirrors what a real browser sends on navigation; some
// storefronts refuse checkout initiation without it.
const browserAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"

// postCartBody is the form-encoded payload stores on the post-cart strategy
// expect before they let a checkout GET through.
const postCartBody = "updates%5B%5D=1&attributes%5Bcheckout_clicked%5D=true&checkout="

// InitiationStrategy issues a store's checkout-initiation request. The state
// machine stays store-agnostic: store-specific protocol quirks live behind
// this interface, selected once by store identifier.
type InitiationStrategy interface {
	Initiate(ctx context.Context, client *http.Client, base *url.URL, paths Paths) (*http.Response, error)
}

// getCheckout is the default strategy: a plain GET against the checkout path.
type getCheckout struct{}

func (getCheckout) Initiate(ctx context.Context, client *http.Client, base *url.URL, paths Paths) (*http.Response, error) {
	u := base.ResolveReference(&url.URL{Path: paths.Checkout})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", browserAccept)
	return client.Do(req)
}

// postCart handles stores that only advance after a POST against the cart
// endpoint carrying the checkout-clicked attributes.
type postCart struct{}

func (postCart) Initiate(ctx context.Context, client *http.Client, base *url.URL, paths Paths) (*http.Response, error) {
	u := base.ResolveReference(&url.URL{Path: paths.Cart})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(postCartBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", browserAccept)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.Do(req)
}

var (
	strategyMu sync.RWMutex
	strategies = map[string]InitiationStrategy{
		"kith": postCart{},
	}
)

// RegisterStrategy binds an initiation strategy to a store identifier,
// replacing any previous binding.
func RegisterStrategy(store string, s InitiationStrategy) {
	strategyMu.Lock()
	strategies[strings.ToLower(store)] = s
	strategyMu.Unlock()
}

// StrategyFor returns the initiation strategy for a store identifier. Unknown
// stores get the plain GET strategy.
func StrategyFor(store string) InitiationStrategy {
	strategyMu.RLock()
	defer strategyMu.RUnlock()
	if s, ok := strategies[strings.ToLower(store)]; ok {
		return s
	}
	return getCheckout{}
}
