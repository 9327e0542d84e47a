package feed

import (
	"sync"
	"time"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// Filter reasons used when content is dropped from a feed.
const (
	ReasonAmbassadorQuota   = "ambassador_quota"
	ReasonPrivacyRestricted = "privacy_restricted"
)

// Diversity-score weights (percent). The 40/30/30 split is a product
// policy value; keep in sync with the feed quality dashboard.
const (
	DiversityCoverageWeight    = 40
	DiversityContentTypeWeight = 30
	DiversitySpreadWeight      = 30
)

// FilteredExample is a bounded sample of a post excluded from a feed.
type FilteredExample struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

// FilteredBucket accumulates exclusions for one filter reason.
type FilteredBucket struct {
	Count    int               `json:"count"`
	Examples []FilteredExample `json:"examples"`
}

// PerfPayload is the per-execution metric payload recorded by the cascade.
type PerfPayload struct {
	QueryTime    time.Duration `json:"query_time"`
	Levels       int           `json:"levels"`
	CacheHitRate float64       `json:"cache_hit_rate"`
	PostCount    int           `json:"post_count"`
}

// PerfEntry is one timestamped performance record.
type PerfEntry struct {
	Tier       string      `json:"tier"`
	Payload    PerfPayload `json:"payload"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// QualityReport is the output of AnalyzeFeedQuality.
type QualityReport struct {
	TotalPosts           int            `json:"total_posts"`
	AuthorDistribution   map[string]int `json:"author_distribution"`
	FromFollowed         int            `json:"from_followed"`
	AmbassadorPosts      int            `json:"ambassador_posts"`
	PublicFromUnfollowed int            `json:"public_from_unfollowed"`
	LastQueryTime        time.Duration  `json:"last_query_time"`
	LastLevels           int            `json:"last_levels"`
	LastCacheHitRate     float64        `json:"last_cache_hit_rate"`
	DiversityScore       float64        `json:"diversity_score"`
}

// Recorder is a process-lifetime accumulator of feed observability state:
// filtered-content buckets and a bounded history of cascade performance.
// It is shared across in-flight requests and guards its state with a
// mutex. It is not a source of truth and is never persisted.
type Recorder struct {
	mu       sync.Mutex
	filtered map[string]*FilteredBucket
	history  []PerfEntry
}

// NewRecorder creates an empty analytics recorder. Construct one at
// startup and inject it wherever feed composition runs.
func NewRecorder() *Recorder {
	return &Recorder{filtered: make(map[string]*FilteredBucket)}
}

// RecordFilteredContent counts posts excluded from a feed under the given
// reason, keeping up to ExamplesPerCall example records per call. The
// total example count is unbounded across calls until Clear.
func (r *Recorder) RecordFilteredContent(posts []domain.Post, reason string) {
	if len(posts) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.filtered[reason]
	if !ok {
		bucket = &FilteredBucket{}
		r.filtered[reason] = bucket
	}
	bucket.Count += len(posts)
	for i, p := range posts {
		if i >= ExamplesPerCall {
			break
		}
		bucket.Examples = append(bucket.Examples, FilteredExample{
			PostID:   p.ID,
			AuthorID: p.AuthorID,
			Content:  truncate(p.Content, 50),
		})
	}
}

// RecordPerformanceMetric appends a timestamped record, trimming the
// history to the most recent PerfHistoryCap entries, oldest dropped first.
func (r *Recorder) RecordPerformanceMetric(tier string, payload PerfPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, PerfEntry{
		Tier:       tier,
		Payload:    payload,
		RecordedAt: time.Now(),
	})
	if len(r.history) > PerfHistoryCap {
		r.history = append(r.history[:0:0], r.history[len(r.history)-PerfHistoryCap:]...)
	}
}

// FilteredContent returns a copy of the current filter buckets.
func (r *Recorder) FilteredContent() map[string]FilteredBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]FilteredBucket, len(r.filtered))
	for reason, bucket := range r.filtered {
		out[reason] = FilteredBucket{
			Count:    bucket.Count,
			Examples: append([]FilteredExample(nil), bucket.Examples...),
		}
	}
	return out
}

// PerformanceHistory returns a copy of the recorded entries, oldest first.
func (r *Recorder) PerformanceHistory() []PerfEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PerfEntry(nil), r.history...)
}

// AnalyzeFeedQuality computes distribution counters and a 0-100 diversity
// score over the given feed. It is pure over its inputs plus the most
// recent recorded performance entry and is safe on empty input.
func (r *Recorder) AnalyzeFeedQuality(posts []domain.Post, followingIDs []string) QualityReport {
	report := QualityReport{
		TotalPosts:         len(posts),
		AuthorDistribution: make(map[string]int),
	}

	r.mu.Lock()
	if len(r.history) > 0 {
		last := r.history[len(r.history)-1]
		report.LastQueryTime = last.Payload.QueryTime
		report.LastLevels = last.Payload.Levels
		report.LastCacheHitRate = last.Payload.CacheHitRate
	}
	r.mu.Unlock()

	if len(posts) == 0 {
		return report
	}

	following := make(map[string]struct{}, len(followingIDs))
	for _, id := range followingIDs {
		following[id] = struct{}{}
	}

	contentTypes := make(map[string]struct{})
	followedSeen := make(map[string]struct{})
	for _, p := range posts {
		report.AuthorDistribution[p.AuthorID]++
		contentTypes[p.ContentType()] = struct{}{}
		if _, ok := following[p.AuthorID]; ok {
			report.FromFollowed++
			followedSeen[p.AuthorID] = struct{}{}
		} else if p.Visibility == domain.VisibilityPublic || p.Visibility == domain.VisibilityHighlight {
			report.PublicFromUnfollowed++
		}
		if p.IsAmbassador {
			report.AmbassadorPosts++
		}
	}

	coverage := 0.0
	if len(followingIDs) > 0 {
		coverage = float64(len(followedSeen)) / float64(len(followingIDs))
	}

	typeRatio := float64(len(contentTypes)) / 4
	if typeRatio > 1 {
		typeRatio = 1
	}

	maxFromOne := 0
	for _, n := range report.AuthorDistribution {
		if n > maxFromOne {
			maxFromOne = n
		}
	}
	spread := 1 - float64(maxFromOne)/(float64(len(report.AuthorDistribution))*PerAuthorCap)
	if spread < 0 {
		spread = 0
	}

	report.DiversityScore = DiversityCoverageWeight*coverage +
		DiversityContentTypeWeight*typeRatio +
		DiversitySpreadWeight*spread
	return report
}

// Clear resets the filter buckets and performance history.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filtered = make(map[string]*FilteredBucket)
	r.history = nil
}

// truncate returns the first n characters of s, appending "..." when
// anything was cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
