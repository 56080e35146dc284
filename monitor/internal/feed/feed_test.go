package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

const sampleFeed = `{"products":[{"id":1,"title":"Court Classic","variants":[
	{"id":10,"title":"8","available":false,"option1":"8"},
	{"id":11,"title":"9","available":true,"option1":"9"}
]}]}`

func testServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_ParsesSnapshot(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleFeed))
	})

	c, err := New(srv.URL, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(snap.Products))
	}
	p := snap.Products[0]
	if p.Title != "Court Classic" || len(p.Variants) != 2 {
		t.Fatalf("unexpected product: %+v", p)
	}
	if !p.Variants[1].Available || p.Variants[0].Available {
		t.Fatalf("availability not parsed: %+v", p.Variants)
	}
}

func TestFetch_CacheBusterIncreases(t *testing.T) {
	var mu sync.Mutex
	var tokens []int64
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
		if err != nil {
			t.Errorf("missing or bad limit param: %v", err)
		}
		mu.Lock()
		tokens = append(tokens, v)
		mu.Unlock()
		w.Write([]byte(`{"products":[]}`))
	})

	c, err := New(srv.URL, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(tokens) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(tokens))
	}
	for i := 1; i < len(tokens); i++ {
		if tokens[i] <= tokens[i-1] {
			t.Fatalf("cache buster not strictly increasing: %v", tokens)
		}
	}
}

func TestFetch_EmptyFeedIsValid(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[]}`))
	})

	c, _ := New(srv.URL, nil, Config{})
	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Products) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestFetch_NonOKIsMalformed(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	c, _ := New(srv.URL, nil, Config{})
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetch_BadBodyIsMalformed(t *testing.T) {
	for _, body := range []string{"<html>maintenance</html>", "{}", `{"products":null}`} {
		srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		c, _ := New(srv.URL, nil, Config{})
		_, err := c.Fetch(context.Background())
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("body %q: expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"products":[]}`))
	})

	c, _ := New(srv.URL, nil, Config{Timeout: 20 * time.Millisecond})
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, _ := New(addr, nil, Config{})
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestVariant_Options(t *testing.T) {
	v := Variant{Option1: "10", Option3: "red"}
	opts := v.Options()
	if len(opts) != 2 || opts[0] != "10" || opts[1] != "red" {
		t.Fatalf("unexpected options: %v", opts)
	}
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	if _, err := New("example.com", nil, Config{}); err == nil {
		t.Fatal("expected error for non-absolute base URL")
	}
}
