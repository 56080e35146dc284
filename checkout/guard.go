package checkout

// Backward-edge names tracked by the guard.
const (
	// EdgeInitiation is CheckoutRequested→CartReady (bounced back to cart).
	EdgeInitiation = "initiation"
	// EdgeResubmit is Submitted→CheckoutRequested (stale checkpoint, 404/409).
	EdgeResubmit = "resubmit"
)

// Guard bounds backward transitions so the protocol always terminates. The
// remote side can bounce indefinitely under load; each backward edge gets an
// independent budget of extra attempts and exhausting any of them forces
// Failed.
type Guard struct {
	max   int
	taken map[string]int
}

// NewGuard creates a Guard allowing max extra attempts per edge. Zero or
// negative means the default of 1.
func NewGuard(max int) *Guard {
	if max <= 0 {
		max = 1
	}
	return &Guard{max: max, taken: make(map[string]int)}
}

// Allow consumes one retry on edge. It returns false once the edge's budget
// is exhausted; the caller must then fail instead of transitioning backward.
func (g *Guard) Allow(edge string) bool {
	if g.taken[edge] >= g.max {
		return false
	}
	g.taken[edge]++
	return true
}

// Taken returns how many retries edge has consumed.
func (g *Guard) Taken(edge string) int { return g.taken[edge] }

// Max returns the per-edge budget.
func (g *Guard) Max() int { return g.max }
