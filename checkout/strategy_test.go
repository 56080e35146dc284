package checkout

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestStrategyForSelection(t *testing.T) {
	if _, ok := StrategyFor("kith").(postCart); !ok {
		t.Fatalf("StrategyFor(kith) = %T, want postCart", StrategyFor("kith"))
	}
	if _, ok := StrategyFor("KITH").(postCart); !ok {
		t.Fatal("store identifiers should be case-insensitive")
	}
	if _, ok := StrategyFor("unknown-store").(getCheckout); !ok {
		t.Fatalf("unknown store should fall back to getCheckout, got %T", StrategyFor("unknown-store"))
	}
}

func TestRegisterStrategy(t *testing.T) {
	RegisterStrategy("teststore", postCart{})
	t.Cleanup(func() {
		strategyMu.Lock()
		delete(strategies, "teststore")
		strategyMu.Unlock()
	})
	if _, ok := StrategyFor("teststore").(postCart); !ok {
		t.Fatal("registered strategy not returned")
	}
}

func TestGetCheckoutInitiate(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
	}))
	t.Cleanup(srv.Close)
	base, _ := url.Parse(srv.URL)

	var p Paths
	p.defaults()
	resp, err := getCheckout{}.Initiate(context.Background(), srv.Client(), base, p)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	resp.Body.Close()
	if gotMethod != http.MethodGet || gotPath != "/checkout" {
		t.Fatalf("got %s %s, want GET /checkout", gotMethod, gotPath)
	}
}

func TestPostCartInitiate(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	t.Cleanup(srv.Close)
	base, _ := url.Parse(srv.URL)

	var p Paths
	p.defaults()
	resp, err := postCart{}.Initiate(context.Background(), srv.Client(), base, p)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	resp.Body.Close()
	if gotMethod != http.MethodPost || gotPath != "/cart" {
		t.Fatalf("got %s %s, want POST /cart", gotMethod, gotPath)
	}
	if gotType != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", gotType)
	}
	if gotBody != postCartBody {
		t.Fatalf("body = %q, want %q", gotBody, postCartBody)
	}
}
