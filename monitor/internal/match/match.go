// Package match selects a purchase target from a snapshot against operator
// criteria. The selection policy is deterministic: the same snapshot, diff
// and criteria always yield the same candidate, so repeated polls can never
// disagree about the target.
package match

import (
	"strings"

	"github.com/hazyhaar/affut/monitor/internal/diff"
	"github.com/hazyhaar/affut/monitor/internal/feed"
)

// Criteria are the operator-declared preferences for one session. Immutable
// once monitoring starts.
type Criteria struct {
	// Keywords filter products by case-insensitive substring match on the
	// product title. Empty means every product qualifies.
	Keywords []string
	// Sizes is the option-value preference list, most preferred first.
	Sizes []string
}

// Candidate is the selected purchase target.
type Candidate struct {
	ProductID    int64
	VariantID    int64
	ProductTitle string
	Options      []string
}

// Select applies the selection policy:
//
//  1. Restrict to variants newly available in d whose product title matches
//     a criteria keyword (all products when no keywords are declared).
//  2. Prefer the first size in the criteria's declared order that any
//     candidate variant carries as an option value.
//  3. Otherwise fall back to the first available candidate in snapshot order.
//
// Returns nil when the filtered set is empty.
func Select(snap *feed.Snapshot, d diff.Diff, c Criteria) *Candidate {
	fresh := d.NewlyAvailable()
	if len(fresh) == 0 {
		return nil
	}

	type pair struct {
		p *feed.Product
		v *feed.Variant
	}
	var candidates []pair
	for i := range snap.Products {
		p := &snap.Products[i]
		if !keywordMatch(p.Title, c.Keywords) {
			continue
		}
		for j := range p.Variants {
			v := &p.Variants[j]
			if v.Available && fresh[v.ID] {
				candidates = append(candidates, pair{p, v})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// First preference in declared order wins.
	for _, size := range c.Sizes {
		for _, cd := range candidates {
			if hasOption(cd.v, size) {
				return candidateOf(cd.p, cd.v)
			}
		}
	}
	return candidateOf(candidates[0].p, candidates[0].v)
}

func candidateOf(p *feed.Product, v *feed.Variant) *Candidate {
	return &Candidate{
		ProductID:    p.ID,
		VariantID:    v.ID,
		ProductTitle: p.Title,
		Options:      v.Options(),
	}
}

func keywordMatch(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func hasOption(v *feed.Variant, want string) bool {
	for _, o := range v.Options() {
		if strings.EqualFold(o, want) {
			return true
		}
	}
	return false
}
