// Package feed implements feed composition: the escalating query cascade
// that assembles a candidate pool, the fair distribution pass that orders
// it, the analytics recorder, and the preview cache.
package feed

import "time"

// Policy constants. These values are carried over from the product's feed
// tuning and are deliberately not derived; change them only as a product
// decision.
const (
	// PostsPerPage is the page size for primary-tier queries.
	PostsPerPage = 10

	// MinPostFloor is the accumulated-post count below which the cascade
	// keeps escalating through fallback tiers.
	MinPostFloor = 8

	// fallback1Floor and fallback2Floor gate the first two fallback
	// tiers; see (*Engine).Execute.
	fallback1Floor = 3
	fallback2Floor = 5

	// AmbassadorCap is the maximum share of the pre-distribution pool
	// that ambassador/sponsored content may occupy.
	AmbassadorCap = 0.30

	// PerAuthorCap is the most rendered slots a single author may fill.
	PerAuthorCap = 3

	// FollowedShare is the fraction of the target feed size reserved for
	// followed authors.
	FollowedShare = 0.70

	// SwapProbability is the chance that the final randomization pass
	// swaps a given adjacent pair.
	SwapProbability = 0.30

	// SafetyLimit is the absolute cap on posts emitted by one
	// distribution pass regardless of target size.
	SafetyLimit = 50

	// TierTimeout bounds each cascade tier's store query.
	TierTimeout = 5 * time.Second

	// PreviewTTL is how long a cached preview stays valid.
	PreviewTTL = 5 * time.Minute

	// PreviewCacheMax is the entry cap on the preview cache; when
	// exceeded, the oldest PreviewEvictFraction of entries are dropped.
	PreviewCacheMax      = 1000
	PreviewEvictFraction = 0.20

	// PerfHistoryCap bounds the analytics recorder's performance history.
	PerfHistoryCap = 10

	// ExamplesPerCall is the most filtered-content examples recorded per
	// RecordFilteredContent call.
	ExamplesPerCall = 3
)
