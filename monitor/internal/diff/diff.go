// Package diff computes availability changes between two feed snapshots.
package diff

import "github.com/hazyhaar/affut/monitor/internal/feed"

// Change records one variant whose availability differs between snapshots.
type Change struct {
	ProductID    int64
	VariantID    int64
	WasAvailable bool
	NowAvailable bool
}

// Diff is an ordered sequence of changes. Empty means "no change", which is
// a meaningful result, not an error.
type Diff []Change

// NewlyAvailable returns the set of variant ids that flipped to available.
func (d Diff) NewlyAvailable() map[int64]bool {
	out := make(map[int64]bool, len(d))
	for _, c := range d {
		if c.NowAvailable && !c.WasAvailable {
			out[c.VariantID] = true
		}
	}
	return out
}

// Compute returns the changes between prev and cur. A nil prev is the first
// observation: every variant is reported as new so the matcher can treat the
// whole snapshot as eligible. A variant missing from one side counts as
// unavailable on that side.
//
// Variants are indexed by id before comparison, so the cost is linear in the
// variant count of both snapshots. Output order follows cur, then prev for
// variants that disappeared.
func Compute(prev, cur *feed.Snapshot) Diff {
	if cur == nil {
		return nil
	}

	if prev == nil {
		var out Diff
		for _, p := range cur.Products {
			for _, v := range p.Variants {
				out = append(out, Change{
					ProductID:    p.ID,
					VariantID:    v.ID,
					WasAvailable: false,
					NowAvailable: v.Available,
				})
			}
		}
		return out
	}

	prevAvail := make(map[int64]bool)
	for _, p := range prev.Products {
		for _, v := range p.Variants {
			prevAvail[v.ID] = v.Available
		}
	}
	curSeen := make(map[int64]bool)

	var out Diff
	for _, p := range cur.Products {
		for _, v := range p.Variants {
			curSeen[v.ID] = true
			if prevAvail[v.ID] != v.Available {
				out = append(out, Change{
					ProductID:    p.ID,
					VariantID:    v.ID,
					WasAvailable: prevAvail[v.ID],
					NowAvailable: v.Available,
				})
			}
		}
	}

	// Variants that vanished from the feed while available.
	for _, p := range prev.Products {
		for _, v := range p.Variants {
			if !curSeen[v.ID] && v.Available {
				out = append(out, Change{
					ProductID:    p.ID,
					VariantID:    v.ID,
					WasAvailable: true,
					NowAvailable: false,
				})
			}
		}
	}
	return out
}
