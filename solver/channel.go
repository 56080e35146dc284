package solver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChannelBridge is an in-process message-passing bridge. Solve publishes a
// Request on the outbound stream; whatever consumes that stream — a worker
// goroutine, an extension host, a relay — answers via Resolve. Pending calls
// are correlated by request id, so multiple sessions can solve concurrently
// without ever seeing each other's tokens.
type ChannelBridge struct {
	requests chan Request
	timeout  time.Duration
	logger   *slog.Logger
	newID    func() string

	mu      sync.Mutex
	pending map[string]chan Response
}

// ChannelBridgeOption configures a ChannelBridge.
type ChannelBridgeOption func(*ChannelBridge)

// WithTimeout sets the per-solve deadline. Default: 90s.
func WithTimeout(d time.Duration) ChannelBridgeOption {
	return func(b *ChannelBridge) { b.timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ChannelBridgeOption {
	return func(b *ChannelBridge) { b.logger = l }
}

// NewChannelBridge creates a ChannelBridge.
func NewChannelBridge(opts ...ChannelBridgeOption) *ChannelBridge {
	b := &ChannelBridge{
		requests: make(chan Request, 16),
		timeout:  90 * time.Second,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		pending:  make(map[string]chan Response),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Requests returns the outbound request stream for the solving side to
// consume.
func (b *ChannelBridge) Requests() <-chan Request { return b.requests }

// Resolve delivers a solver response to the waiting call. Responses for
// unknown or already-resolved ids are dropped; returns whether the response
// was delivered.
func (b *ChannelBridge) Resolve(r Response) bool {
	b.mu.Lock()
	ch, ok := b.pending[r.ID]
	if ok {
		delete(b.pending, r.ID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("solver: dropping unmatched response", "id", r.ID)
		return false
	}
	ch <- r
	return true
}

// Solve publishes the descriptor and waits for the correlated response, the
// configured timeout, or ctx cancellation, whichever comes first.
func (b *ChannelBridge) Solve(ctx context.Context, d Descriptor) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	id := b.newID()
	ch := make(chan Response, 1)
	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	req := Request{
		ID:   id,
		Type: "solve_challenge",
		Kind: d.Kind,
		Item: Item{SiteKey: d.SiteKey, SiteURL: d.SiteURL},
		Data: d.Data,
	}

	select {
	case b.requests <- req:
	case <-ctx.Done():
		return "", unresolved("publish: %v", ctx.Err())
	}
	b.logger.Debug("solver: solve requested", "id", id, "kind", d.Kind, "sitekey", d.SiteKey)

	select {
	case resp := <-ch:
		if resp.Err != "" {
			return "", unresolved("%s", resp.Err)
		}
		b.logger.Debug("solver: solved", "id", id)
		return resp.Token, nil
	case <-ctx.Done():
		return "", unresolved("wait: %v", ctx.Err())
	}
}
