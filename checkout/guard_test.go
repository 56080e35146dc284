package checkout

import "testing"

func TestGuardBudgetPerEdge(t *testing.T) {
	g := NewGuard(1)

	if !g.Allow(EdgeInitiation) {
		t.Fatal("first retry on initiation edge should be allowed")
	}
	if g.Allow(EdgeInitiation) {
		t.Fatal("second retry on initiation edge should be denied")
	}

	// Budgets are independent per edge.
	if !g.Allow(EdgeResubmit) {
		t.Fatal("resubmit edge budget should be untouched by initiation edge")
	}
	if g.Allow(EdgeResubmit) {
		t.Fatal("resubmit edge budget exhausted, should deny")
	}

	if got := g.Taken(EdgeInitiation); got != 1 {
		t.Fatalf("Taken(initiation) = %d, want 1", got)
	}
}

func TestGuardDefaultsToOne(t *testing.T) {
	for _, max := range []int{0, -3} {
		g := NewGuard(max)
		if g.Max() != 1 {
			t.Fatalf("NewGuard(%d).Max() = %d, want 1", max, g.Max())
		}
	}
}

func TestGuardLargerBudget(t *testing.T) {
	g := NewGuard(3)
	for i := 0; i < 3; i++ {
		if !g.Allow(EdgeResubmit) {
			t.Fatalf("retry %d should be allowed with budget 3", i+1)
		}
	}
	if g.Allow(EdgeResubmit) {
		t.Fatal("fourth retry should be denied with budget 3")
	}
}
