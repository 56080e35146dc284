// Package monitor watches one storefront product feed for a target becoming
// purchasable.
//
// A Session composes the feed client, the snapshot differ, the criteria
// matcher and the clock-aware pacer into a cancellable polling loop. The loop
// runs strictly sequential cycles, stops atomically the moment a candidate is
// matched, and hands the candidate back to the caller — typically the
// checkout package.
package monitor

import (
	"github.com/hazyhaar/affut/monitor/internal/diff"
	"github.com/hazyhaar/affut/monitor/internal/feed"
	"github.com/hazyhaar/affut/monitor/internal/match"
	"github.com/hazyhaar/affut/monitor/internal/pace"
)

// Re-export internal types for the public API.
type (
	Snapshot   = feed.Snapshot
	Product    = feed.Product
	Variant    = feed.Variant
	Diff       = diff.Diff
	Change     = diff.Change
	Criteria   = match.Criteria
	Candidate  = match.Candidate
	FeedConfig = feed.Config
	PaceConfig = pace.Config
)

// Feed error sentinels, re-exported for callers that inspect poll failures.
var (
	ErrFeedUnavailable = feed.ErrUnavailable
	ErrFeedTimeout     = feed.ErrTimeout
	ErrFeedMalformed   = feed.ErrMalformed
)
