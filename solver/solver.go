// Package solver bridges checkout challenges to an external solving service.
//
// The engine never solves challenges itself: it describes one (a Descriptor)
// and asks a Bridge for a solution token. Two bridges ship here — an
// in-process message-passing bridge for solvers living in the same process,
// and an HTTP bridge for solvers reached over the network. Both are stateless
// shared services: concurrent sessions can call them freely, every call is
// correlated by a request-scoped id so responses can never be cross-delivered
// to the wrong session.
package solver

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnresolved is returned when the solver fails, times out, or the call is
// cancelled. Terminal for the current checkout attempt.
var ErrUnresolved = errors.New("solver: challenge unresolved")

// Kind distinguishes the two challenge shapes the checkout protocol meets.
type Kind string

const (
	// KindInteractive is a challenge embedded on a checkout page.
	KindInteractive Kind = "interactive"
	// KindCheckpoint is the challenge on a checkpoint page.
	KindCheckpoint Kind = "checkpoint"
)

// Descriptor describes one challenge to solve.
type Descriptor struct {
	Kind    Kind   `json:"kind"`
	SiteKey string `json:"sitekey"`
	SiteURL string `json:"site_url"`
	// Data carries the provider's extra "s" parameter when present.
	Data string `json:"data,omitempty"`
}

// Bridge obtains a solution token for a challenge descriptor. Implementations
// must honour ctx cancellation.
type Bridge interface {
	Solve(ctx context.Context, d Descriptor) (string, error)
}

// BridgeFunc adapts a function to a Bridge.
type BridgeFunc func(ctx context.Context, d Descriptor) (string, error)

// Solve calls f.
func (f BridgeFunc) Solve(ctx context.Context, d Descriptor) (string, error) {
	return f(ctx, d)
}

// Item is the challenge payload of an outbound solve request, in the wire
// shape the solving side expects.
type Item struct {
	SiteKey string `json:"sitekey"`
	SiteURL string `json:"siteURL"`
}

// Request is the outbound message to a solver.
type Request struct {
	ID   string `json:"id"`
	Type string `json:"type"` // always "solve_challenge"
	Kind Kind   `json:"kind"`
	Item Item   `json:"item"`
	Data string `json:"data,omitempty"`
}

// Response is the inbound, correlated solver reply.
type Response struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Err   string `json:"error,omitempty"`
}

func unresolved(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnresolved, fmt.Sprintf(format, args...))
}
