package checkout

import (
	"errors"
	"fmt"
)

// ErrHygiene is returned when the cart could not be cleared and verified
// empty. Aborts the current candidate attempt only.
var ErrHygiene = errors.New("checkout: cart hygiene failed")

// ErrAddToCart is returned when the add-to-cart response carries no
// recognizable product title, regardless of HTTP status.
var ErrAddToCart = errors.New("checkout: add to cart unconfirmed")

// ErrChallengeUnresolved is returned when the solver failed or timed out.
// Terminal for the attempt; the caller is handed the known checkout URL.
var ErrChallengeUnresolved = errors.New("checkout: challenge unresolved")

// ErrLoopGuardExceeded reports an exhausted retry budget on one backward
// edge of the state machine.
type ErrLoopGuardExceeded struct {
	Edge string
	Max  int
}

func (e *ErrLoopGuardExceeded) Error() string {
	return fmt.Sprintf("checkout: loop guard exceeded on %s (max %d extra attempts)", e.Edge, e.Max)
}

// ErrProtocolMismatch reports an unexpected response shape at a checkout
// step. Terminal.
type ErrProtocolMismatch struct {
	State  State
	Status int
	URL    string
	Detail string
}

func (e *ErrProtocolMismatch) Error() string {
	msg := fmt.Sprintf("checkout: unexpected response in %s: http %d at %s", e.State, e.Status, e.URL)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}
