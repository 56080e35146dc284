package checkout

import "fmt"

// State is a checkout protocol state. Failed is reachable from every state;
// backward transitions (CheckoutRequested→CartReady, Submitted→
// CheckoutRequested) pass through the loop guard.
type State int

const (
	StateCartReady State = iota
	StateCheckoutRequested
	StateAwaitingNextStep
	StateChallengeGate
	StateCheckpointChallenge
	StateSubmitted
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCartReady:
		return "CartReady"
	case StateCheckoutRequested:
		return "CheckoutRequested"
	case StateAwaitingNextStep:
		return "AwaitingNextStep"
	case StateChallengeGate:
		return "ChallengeGate"
	case StateCheckpointChallenge:
		return "CheckpointChallenge"
	case StateSubmitted:
		return "Submitted"
	case StateSuccess:
		return "Success"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
