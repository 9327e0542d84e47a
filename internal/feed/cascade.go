package feed

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// Cascade tier names, in escalation order.
const (
	TierPrimary   = "primary"
	TierFallback1 = "fallback1"
	TierFallback2 = "fallback2"
	TierFallback3 = "fallback3"
)

// HitRater exposes a cache hit rate. The preview cache implements it; the
// engine only reads it for reporting.
type HitRater interface {
	HitRate() float64
}

// Engine executes the escalating feed query cascade. Tiers run
// sequentially: each fallback's decision to run depends on the running
// total accumulated by the tiers before it, so they must not be
// parallelized.
type Engine struct {
	store     domain.ContentStore
	analytics *Recorder
	hitRater  HitRater
	logger    *slog.Logger
}

// NewEngine creates a cascade engine. analytics may be nil to disable
// recording.
func NewEngine(store domain.ContentStore, analytics *Recorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		analytics: analytics,
		logger:    logger,
	}
}

// SetHitRater attaches a cache hit-rate source reported in cascade results.
func (e *Engine) SetHitRater(h HitRater) { e.hitRater = h }

// tierStep is one state of the cascade machine: a named query that runs
// only while the accumulated post count is still below its floor.
type tierStep struct {
	name   string
	source string
	// floor gates execution; alwaysRun disables the gate.
	floor int
	query func(ctx context.Context, accumulated int) ([]domain.Post, error)
}

const alwaysRun = -1

// Execute runs the cascade for one feed page and returns a deduplicated,
// quota-enforced post pool plus per-tier metrics. It never returns an
// error: tier failures contribute zero posts, and a failure that escapes
// the whole cascade yields the caller's existing posts with errored
// metrics.
func (e *Engine) Execute(ctx context.Context, userID string, followingIDs []string, page int, existing []domain.Post) (result domain.CascadeResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("feed cascade failed, returning accumulated posts", "user_id", userID, "panic", r)
			result = erroredResult(existing)
		}
	}()

	posts := append([]domain.Post(nil), existing...)
	metrics := make([]domain.TierMetric, 0, 4)
	fallback3Ran := false

	steps := []tierStep{
		{
			name:   TierPrimary,
			source: "followed_authors",
			floor:  alwaysRun,
			query: func(ctx context.Context, _ int) ([]domain.Post, error) {
				authors := append([]string{userID}, followingIDs...)
				vis := []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends, domain.VisibilityHighlight}
				return e.store.PostsByAuthors(ctx, authors, vis, PostsPerPage, page*PostsPerPage)
			},
		},
		{
			name:   TierFallback1,
			source: "followed_highlights",
			floor:  fallback1Floor,
			query: func(ctx context.Context, _ int) ([]domain.Post, error) {
				return e.store.HighlightsByAuthors(ctx, followingIDs, PostsPerPage)
			},
		},
		{
			name:   TierFallback2,
			source: "public_highlights",
			floor:  fallback2Floor,
			query: func(ctx context.Context, _ int) ([]domain.Post, error) {
				return e.store.TopHighlights(ctx, PostsPerPage)
			},
		},
		{
			name:   TierFallback3,
			source: "ambassador_content",
			floor:  MinPostFloor,
			query: func(ctx context.Context, accumulated int) ([]domain.Post, error) {
				fallback3Ran = true
				ambassador, err := e.store.AmbassadorPosts(ctx, PostsPerPage)
				if err != nil {
					return nil, err
				}
				// Admit at most 30% of the current total, but never zero:
				// once this tier is reached, sponsored content is present.
				admit := int(math.Floor(float64(accumulated) * AmbassadorCap))
				if admit < 1 {
					admit = 1
				}
				if len(ambassador) > admit {
					ambassador = ambassador[:admit]
				}
				return ambassador, nil
			},
		},
	}

	for _, step := range steps {
		if step.floor != alwaysRun && len(posts) >= step.floor {
			continue
		}

		tierCtx, cancel := context.WithTimeout(ctx, TierTimeout)
		start := time.Now()
		tierPosts, err := step.query(tierCtx, len(posts))
		elapsed := time.Since(start)
		cancel()

		metric := domain.TierMetric{
			Tier:      step.name,
			Source:    step.source,
			PostCount: len(tierPosts),
			Duration:  elapsed,
		}
		if err != nil {
			// A failed tier contributes nothing; later tiers still run.
			metric.Errors = 1
			metric.PostCount = 0
			e.logger.Warn("cascade tier failed", "tier", step.name, "error", err)
		} else {
			posts = append(posts, tierPosts...)
		}
		metrics = append(metrics, metric)
	}

	posts = dedupeByID(posts)
	posts = e.enforceAmbassadorCap(posts, fallback3Ran)

	result = domain.CascadeResult{
		Posts:      posts,
		Metrics:    metrics,
		TotalPosts: len(posts),
	}
	ambassadors := 0
	for _, p := range posts {
		if p.IsAmbassador {
			ambassadors++
		}
	}
	if len(posts) > 0 {
		result.AmbassadorPercentage = float64(ambassadors) / float64(len(posts)) * 100
	}
	for _, m := range metrics {
		result.TotalQueryTime += m.Duration
	}
	if e.hitRater != nil {
		result.CacheHitRate = e.hitRater.HitRate()
	}

	if e.analytics != nil {
		deepest := metrics[len(metrics)-1].Tier
		e.analytics.RecordPerformanceMetric(deepest, PerfPayload{
			QueryTime:    result.TotalQueryTime,
			Levels:       len(metrics),
			CacheHitRate: result.CacheHitRate,
			PostCount:    len(posts),
		})
	}

	return result
}

// dedupeByID keeps the first occurrence of each post id, preserving order.
// Earlier tiers take priority over later ones for which copy survives.
func dedupeByID(posts []domain.Post) []domain.Post {
	seen := make(map[string]struct{}, len(posts))
	out := posts[:0:0]
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// enforceAmbassadorCap re-applies the global ambassador quota across the
// full deduplicated pool and re-merges sorted by recency. The cap applies
// whether or not the ambassador fallback tier ran; the force-one exception
// only applies when it did.
func (e *Engine) enforceAmbassadorCap(posts []domain.Post, fallback3Ran bool) []domain.Post {
	var ambassador, regular []domain.Post
	for _, p := range posts {
		if p.IsAmbassador {
			ambassador = append(ambassador, p)
		} else {
			regular = append(regular, p)
		}
	}

	maxAmbassador := int(math.Floor(float64(len(posts)) * AmbassadorCap))
	if maxAmbassador < 1 && fallback3Ran {
		maxAmbassador = 1
	}
	if len(ambassador) > maxAmbassador {
		dropped := ambassador[maxAmbassador:]
		if e.analytics != nil {
			e.analytics.RecordFilteredContent(dropped, ReasonAmbassadorQuota)
		}
		ambassador = ambassador[:maxAmbassador]
	}

	merged := append(regular, ambassador...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

func erroredResult(existing []domain.Post) domain.CascadeResult {
	metrics := make([]domain.TierMetric, 0, 4)
	for _, name := range []string{TierPrimary, TierFallback1, TierFallback2, TierFallback3} {
		metrics = append(metrics, domain.TierMetric{Tier: name, Source: "error", Errors: 1})
	}
	return domain.CascadeResult{
		Posts:      existing,
		Metrics:    metrics,
		TotalPosts: len(existing),
	}
}
