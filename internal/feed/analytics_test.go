package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

func TestRecorderPerformanceHistoryFIFO(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 12; i++ {
		r.RecordPerformanceMetric(fmt.Sprintf("tier-%d", i), PerfPayload{Levels: i})
	}

	history := r.PerformanceHistory()
	require.Len(t, history, PerfHistoryCap)
	assert.Equal(t, "tier-3", history[0].Tier, "entries 1 and 2 must have been evicted")
	assert.Equal(t, "tier-12", history[len(history)-1].Tier)
}

func TestRecorderFilteredContentExamplesBounded(t *testing.T) {
	r := NewRecorder()
	posts := makePosts("x", "alice", 5, false, time.Now())

	r.RecordFilteredContent(posts, ReasonPrivacyRestricted)
	r.RecordFilteredContent(posts[:2], ReasonPrivacyRestricted)

	buckets := r.FilteredContent()
	bucket, ok := buckets[ReasonPrivacyRestricted]
	require.True(t, ok)
	assert.Equal(t, 7, bucket.Count)
	// 3 examples from the first call, 2 from the second.
	assert.Len(t, bucket.Examples, 5)
}

func TestRecorderFilteredContentTruncatesExamples(t *testing.T) {
	r := NewRecorder()
	long := domain.Post{ID: "p1", AuthorID: "alice", Content: string(make([]byte, 80))}

	r.RecordFilteredContent([]domain.Post{long}, ReasonAmbassadorQuota)

	bucket := r.FilteredContent()[ReasonAmbassadorQuota]
	require.Len(t, bucket.Examples, 1)
	assert.Len(t, bucket.Examples[0].Content, 53) // 50 chars plus ellipsis
}

func TestAnalyzeFeedQualityEmptyInput(t *testing.T) {
	r := NewRecorder()

	report := r.AnalyzeFeedQuality(nil, []string{"a", "b"})

	assert.Zero(t, report.DiversityScore)
	assert.Zero(t, report.TotalPosts)
}

func TestAnalyzeFeedQualityCounters(t *testing.T) {
	base := time.Now()
	posts := []domain.Post{
		{ID: "1", AuthorID: "f1", Visibility: domain.VisibilityFriends, CreatedAt: base},
		{ID: "2", AuthorID: "f1", Visibility: domain.VisibilityPublic, CreatedAt: base},
		{ID: "3", AuthorID: "u1", Visibility: domain.VisibilityPublic, CreatedAt: base},
		{ID: "4", AuthorID: "amb", Visibility: domain.VisibilityHighlight, IsAmbassador: true, CreatedAt: base},
	}
	r := NewRecorder()

	report := r.AnalyzeFeedQuality(posts, []string{"f1", "f2"})

	assert.Equal(t, 2, report.FromFollowed)
	assert.Equal(t, 1, report.AmbassadorPosts)
	assert.Equal(t, 2, report.PublicFromUnfollowed)
	assert.Equal(t, 2, report.AuthorDistribution["f1"])
}

func TestAnalyzeFeedQualityDiversityScore(t *testing.T) {
	base := time.Now()
	posts := []domain.Post{
		{ID: "1", AuthorID: "f1", Visibility: domain.VisibilityPublic, CreatedAt: base},
		{ID: "2", AuthorID: "f2", Visibility: domain.VisibilityPublic, MediaKind: domain.MediaPhoto, CreatedAt: base},
		{ID: "3", AuthorID: "u1", Visibility: domain.VisibilityPublic, MediaKind: domain.MediaVideo, CreatedAt: base},
		{ID: "4", AuthorID: "u2", Visibility: domain.VisibilityHighlight, CreatedAt: base},
	}
	r := NewRecorder()

	report := r.AnalyzeFeedQuality(posts, []string{"f1", "f2"})

	// coverage 2/2, all four content types, spread 1 - 1/(4*3).
	expected := 40.0 + 30.0 + 30.0*(1-1.0/12)
	assert.InDelta(t, expected, report.DiversityScore, 0.001)
	assert.LessOrEqual(t, report.DiversityScore, 100.0)
}

func TestAnalyzeFeedQualityUsesLatestPerfEntry(t *testing.T) {
	r := NewRecorder()
	r.RecordPerformanceMetric(TierPrimary, PerfPayload{QueryTime: time.Second, Levels: 1, CacheHitRate: 0.25})
	r.RecordPerformanceMetric(TierFallback2, PerfPayload{QueryTime: 2 * time.Second, Levels: 3, CacheHitRate: 0.5})

	report := r.AnalyzeFeedQuality(makePosts("p", "a", 1, false, time.Now()), nil)

	assert.Equal(t, 2*time.Second, report.LastQueryTime)
	assert.Equal(t, 3, report.LastLevels)
	assert.Equal(t, 0.5, report.LastCacheHitRate)
}

func TestRecorderClear(t *testing.T) {
	r := NewRecorder()
	r.RecordFilteredContent(makePosts("p", "a", 2, false, time.Now()), ReasonPrivacyRestricted)
	r.RecordPerformanceMetric(TierPrimary, PerfPayload{})

	r.Clear()

	assert.Empty(t, r.FilteredContent())
	assert.Empty(t, r.PerformanceHistory())
}
