package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const (
	soldOut = `{"products":[{"id":1,"title":"Lightning Dunk","variants":[
		{"id":10,"title":"10","available":false,"option1":"10"}]}]}`
	restocked = `{"products":[{"id":1,"title":"Lightning Dunk","variants":[
		{"id":10,"title":"10","available":true,"option1":"10"}]}]}`
)

func fastConfig() Config {
	return Config{
		Pace: PaceConfig{Base: 5 * time.Millisecond, Low: 5 * time.Millisecond},
		Feed: FeedConfig{Timeout: time.Second},
	}
}

func TestRun_MatchesOnRestock(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Write([]byte(soldOut))
			return
		}
		w.Write([]byte(restocked))
	}))
	t.Cleanup(srv.Close)

	cfg := fastConfig()
	cfg.Criteria = Criteria{Keywords: []string{"dunk"}, Sizes: []string{"10"}}
	s, err := New(srv.URL, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}

	cand, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cand.VariantID != 10 || cand.ProductTitle != "Lightning Dunk" {
		t.Fatalf("unexpected candidate: %+v", cand)
	}
	if got := s.State(); got != StateMatched {
		t.Fatalf("state = %s, want Matched", got)
	}
	if stats := s.Stats(); stats.Changes != 2 {
		// First observation plus the restock flip.
		t.Fatalf("expected 2 change cycles, got %+v", stats)
	}
}

func TestRun_FirstSnapshotCanMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(restocked))
	}))
	t.Cleanup(srv.Close)

	cfg := fastConfig()
	s, err := New(srv.URL, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}

	cand, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cand == nil || cand.VariantID != 10 {
		t.Fatalf("expected variant 10 from first snapshot, got %+v", cand)
	}
	if stats := s.Stats(); stats.Cycles != 1 {
		t.Fatalf("expected exactly one cycle, got %+v", stats)
	}
}

func TestRun_SurvivesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		case 2:
			w.Write([]byte("<html>cdn hiccup</html>"))
		default:
			w.Write([]byte(restocked))
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil, fastConfig())
	if err != nil {
		t.Fatal(err)
	}

	cand, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cand == nil {
		t.Fatal("expected a candidate after transient errors")
	}
	if stats := s.Stats(); stats.Errors != 2 {
		t.Fatalf("expected 2 transient errors, got %+v", stats)
	}
}

func TestRun_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(soldOut))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil, fastConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err = s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := s.State(); got != StateCancelled {
		t.Fatalf("state = %s, want Cancelled", got)
	}
}

func TestRun_SecondRunRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(restocked))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil, fastConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestRun_UnchangedFeedNeverMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(soldOut))
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, nil, fastConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if _, err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	stats := s.Stats()
	if stats.Cycles < 2 {
		t.Fatalf("expected multiple cycles, got %+v", stats)
	}
	if stats.Changes != 1 {
		// Only the first observation registers a change; diff(S, S) is empty.
		t.Fatalf("expected exactly 1 change cycle, got %+v", stats)
	}
}
