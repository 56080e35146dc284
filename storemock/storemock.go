// Package storemock is a scriptable in-process storefront used by the
// end-to-end tests and by local development against cmd/affut. It serves the
// catalog feed and the cart/checkout/checkpoint endpoints with the same
// response shapes a real storefront produces, and exposes knobs to script
// the adversarial behaviors the protocol must survive: cart bounces,
// interactive challenges, checkpoint assertion, and stale-checkpoint
// conflicts.
package storemock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Variant mirrors one purchasable SKU in the catalog feed.
type Variant struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
	Option1   string `json:"option1"`
	Option2   string `json:"option2"`
	Option3   string `json:"option3"`
}

// Product mirrors one catalog entry in the feed.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Script controls the adversarial behaviors the store exhibits.
type Script struct {
	// CartBounces is how many checkout initiations redirect back to the
	// cart page before one goes through.
	CartBounces int
	// ChallengeOnLanding serves an interactive challenge on the first
	// checkout landing page.
	ChallengeOnLanding bool
	// Checkpoint routes the checkout flow through the checkpoint page.
	Checkpoint bool
	// MalformedCheckpoint serves a checkpoint page without challenge
	// details.
	MalformedCheckpoint bool
	// SubmitConflicts is how many checkpoint submissions answer 409
	// before one is accepted.
	SubmitConflicts int
	// QueueOnSuccess lands successful checkouts in the throttle queue
	// instead of a checkout page.
	QueueOnSuccess bool
	// StaleCartItems makes the cart-clear verification report leftover
	// items.
	StaleCartItems int
}

// Counters exposes how often each endpoint was hit.
type Counters struct {
	FeedFetches int64
	CartClears  int64
	CartAdds    int64
	Initiations int64
	Submits     int64
}

// Store is the mock storefront. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	products []Product
	script   Script
	solved   bool

	feedFetches atomic.Int64
	cartClears  atomic.Int64
	cartAdds    atomic.Int64
	initiations atomic.Int64
	submits     atomic.Int64

	router chi.Router
}

// New creates a Store serving the given catalog.
func New(products []Product) *Store {
	s := &Store{products: products}
	r := chi.NewRouter()

	r.Get("/products.json", s.handleFeed)
	r.Post("/cart/clear.js", s.handleClear)
	r.Post("/cart/add.js", s.handleAdd)
	r.Get("/cart", s.handleCartPage)
	r.Post("/cart", s.handleInitiate)
	r.Get("/checkout", s.handleInitiate)
	r.Get("/checkpoint", s.handleCheckpointPage)
	r.Post("/checkpoint", s.handleCheckpointSubmit)
	r.Get("/throttle/queue", s.handleQueue)
	r.Get("/checkouts/{id}", s.handleCheckoutPage)

	s.router = r
	return s
}

func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetScript replaces the store's scripted behavior.
func (s *Store) SetScript(sc Script) {
	s.mu.Lock()
	s.script = sc
	s.solved = false
	s.mu.Unlock()
}

// SetAvailability flips one variant's availability in the served feed.
func (s *Store) SetAvailability(productID, variantID int64, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pi := range s.products {
		if s.products[pi].ID != productID {
			continue
		}
		for vi := range s.products[pi].Variants {
			if s.products[pi].Variants[vi].ID == variantID {
				s.products[pi].Variants[vi].Available = available
			}
		}
	}
}

// Counters returns a snapshot of the endpoint hit counters.
func (s *Store) Counters() Counters {
	return Counters{
		FeedFetches: s.feedFetches.Load(),
		CartClears:  s.cartClears.Load(),
		CartAdds:    s.cartAdds.Load(),
		Initiations: s.initiations.Load(),
		Submits:     s.submits.Load(),
	}
}

func (s *Store) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.feedFetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"products": s.products})
}

func (s *Store) handleClear(w http.ResponseWriter, r *http.Request) {
	s.cartClears.Add(1)
	s.mu.Lock()
	count := s.script.StaleCartItems
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"item_count": count})
}

func (s *Store) handleAdd(w http.ResponseWriter, r *http.Request) {
	s.cartAdds.Add(1)
	var payload struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		for _, v := range p.Variants {
			if fmt.Sprint(v.ID) == payload.ID && v.Available {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"product_title": p.Title,
					"variant_id":    v.ID,
					"quantity":      payload.Quantity,
				})
				return
			}
		}
	}
	http.Error(w, `{"description":"sold out"}`, http.StatusUnprocessableEntity)
}

func (s *Store) handleCartPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<html><body><h1>Your cart</h1></body></html>`)
}

// handleInitiate serves both the GET /checkout and POST /cart initiation
// shapes, applying the scripted bounces, challenge, and checkpoint routing.
func (s *Store) handleInitiate(w http.ResponseWriter, r *http.Request) {
	s.initiations.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.script.CartBounces > 0 {
		s.script.CartBounces--
		http.Redirect(w, r, "/cart", http.StatusFound)
		return
	}
	// The challenge is served once; the post-solve re-fetch goes through.
	if s.script.ChallengeOnLanding && !s.solved {
		s.solved = true
		fmt.Fprint(w, `<html><head>
			<script src="https://www.google.com/recaptcha/api.js"></script></head>
			<body><div class="g-recaptcha" data-sitekey="landing-sitekey"></div></body></html>`)
		return
	}
	if s.script.Checkpoint {
		http.Redirect(w, r, "/checkpoint", http.StatusFound)
		return
	}
	s.redirectSuccessLocked(w, r)
}

func (s *Store) handleCheckpointPage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.script.Checkpoint {
		http.NotFound(w, r)
		return
	}
	if s.script.MalformedCheckpoint {
		fmt.Fprint(w, `<html><body><form method="post" action="/checkpoint">
			<input type="hidden" name="authenticity_token" value="cp-token">
		</form></body></html>`)
		return
	}
	fmt.Fprint(w, `<html><body><form method="post" action="/checkpoint">
		<input type="hidden" name="authenticity_token" value="cp-token">
		<div class="g-recaptcha" data-sitekey="cp-sitekey" data-s="cp-data"></div>
	</form></body></html>`)
}

func (s *Store) handleCheckpointSubmit(w http.ResponseWriter, r *http.Request) {
	s.submits.Add(1)
	if r.FormValue("authenticity_token") == "" || r.FormValue("g-recaptcha-response") == "" {
		http.Error(w, "missing form fields", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.script.SubmitConflicts > 0 {
		s.script.SubmitConflicts--
		// The expired checkpoint does not reassert on the reacquired URL.
		s.script.Checkpoint = false
		s.mu.Unlock()
		http.Error(w, "checkpoint expired", http.StatusConflict)
		return
	}
	s.script.Checkpoint = false
	defer s.mu.Unlock()
	s.redirectSuccessLocked(w, r)
}

func (s *Store) handleQueue(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<html><body><h1>You are in line</h1></body></html>`)
}

func (s *Store) handleCheckoutPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, `<html><body><h1>Checkout %s</h1></body></html>`, chi.URLParam(r, "id"))
}

func (s *Store) redirectSuccessLocked(w http.ResponseWriter, r *http.Request) {
	if s.script.QueueOnSuccess {
		http.Redirect(w, r, "/throttle/queue", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/checkouts/"+uuid.NewString(), http.StatusFound)
}
