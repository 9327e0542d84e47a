package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// Fallback reasons surfaced on degraded previews.
const (
	FallbackNotFound          = "Post not found"
	FallbackPrivacyRestricted = "Privacy restricted"
)

const privatePlaceholder = "This content is private"

// CacheStats describes the preview cache for the debug endpoint. Memory is
// an approximation at half a unit per entry.
type CacheStats struct {
	Entries     int     `json:"entries"`
	MemoryUnits float64 `json:"memory_units"`
	FillPercent float64 `json:"fill_percent"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
}

type previewEntry struct {
	preview     domain.PostPreview
	contextHash string
	createdAt   time.Time
}

// PostSource is the single-post lookup the preview path needs from the
// content store.
type PostSource interface {
	GetPost(ctx context.Context, id string) (*domain.Post, error)
}

// PreviewCache serves single-post previews with a time- and viewer-context-
// keyed cache. Lookups never fail: every error path degrades to a fallback
// payload. The cache map is shared across in-flight requests and guarded
// by a mutex.
type PreviewCache struct {
	store     PostSource
	engage    domain.EngagementStore
	privacy   domain.PrivacyFilter
	analytics *Recorder
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]previewEntry
	hits    int64
	misses  int64
}

// NewPreviewCache creates a preview cache. analytics may be nil.
func NewPreviewCache(store PostSource, engage domain.EngagementStore, privacy domain.PrivacyFilter, analytics *Recorder, logger *slog.Logger) *PreviewCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewCache{
		store:     store,
		engage:    engage,
		privacy:   privacy,
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]previewEntry),
	}
}

// contextHash is a coarse proxy for "could visibility differ for this
// viewer": the viewer id, their follow-set size and the coach flag.
func contextHash(viewer domain.ViewerContext) string {
	return fmt.Sprintf("%s:%d:%t", viewer.UserID, len(viewer.FollowingIDs), viewer.IsCoach)
}

func cacheKey(postID string, hash string) string {
	return postID + "|" + hash
}

// GetPostPreview returns a preview for the post as seen by the viewer. A
// cached entry is used when it is unexpired and was computed for the same
// viewer context, unless forceRefresh is set.
func (c *PreviewCache) GetPostPreview(ctx context.Context, postID string, viewer domain.ViewerContext, forceRefresh bool) domain.PostPreview {
	hash := contextHash(viewer)
	key := cacheKey(postID, hash)

	if !forceRefresh {
		if preview, ok := c.lookup(key, hash); ok {
			return preview
		}
	}

	post, err := c.store.GetPost(ctx, postID)
	if err != nil {
		if err != domain.ErrNotFound {
			c.logger.Warn("preview fetch failed", "post_id", postID, "error", err)
		}
		// Not cached: a later fetch may succeed.
		return fallbackPreview(postID, FallbackNotFound)
	}

	enriched, author := c.enrich(ctx, *post)

	visible, err := c.privacy.SanitizePostsForUser(ctx, []domain.Post{enriched}, viewer)
	if err != nil {
		c.logger.Warn("privacy filter failed, treating post as restricted", "post_id", postID, "error", err)
		visible = nil
	}

	var preview domain.PostPreview
	if len(visible) == 0 {
		if c.analytics != nil {
			c.analytics.RecordFilteredContent([]domain.Post{enriched}, ReasonPrivacyRestricted)
		}
		preview = fallbackPreview(postID, FallbackPrivacyRestricted)
		preview.Content = privatePlaceholder
		preview.Author = author
	} else {
		preview = domain.PostPreview{
			PostID:       enriched.ID,
			Content:      truncate(enriched.Content, 200),
			MediaURL:     enriched.MediaURL,
			MediaKind:    enriched.MediaKind,
			Author:       author,
			LikeCount:    enriched.LikeCount,
			CommentCount: enriched.CommentCount,
			Visibility:   enriched.Visibility,
			CreatedAt:    enriched.CreatedAt,
		}
	}

	c.storeEntry(key, hash, preview)
	return preview
}

// enrich loads the author summary and the two engagement counts. The three
// lookups are read-only and independent, so they run concurrently. Any
// failure degrades to the values already on the post.
func (c *PreviewCache) enrich(ctx context.Context, post domain.Post) (domain.Post, domain.AuthorSummary) {
	author := domain.AuthorSummary{ID: post.AuthorID, Username: "unknown", DisplayName: "Unknown"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wg.Add(3)

	go func() {
		defer wg.Done()
		if summary, err := c.engage.GetAuthorSummary(ctx, post.AuthorID); err == nil {
			mu.Lock()
			author = *summary
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		if likes, err := c.engage.CountLikes(ctx, post.ID); err == nil {
			mu.Lock()
			post.LikeCount = likes
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		if comments, err := c.engage.CountComments(ctx, post.ID); err == nil {
			mu.Lock()
			post.CommentCount = comments
			mu.Unlock()
		}
	}()
	wg.Wait()

	return post, author
}

func (c *PreviewCache) lookup(key, hash string) (domain.PostPreview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.createdAt) > PreviewTTL || entry.contextHash != hash {
		c.misses++
		return domain.PostPreview{}, false
	}
	c.hits++
	return entry.preview, true
}

func (c *PreviewCache) storeEntry(key, hash string, preview domain.PostPreview) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = previewEntry{
		preview:     preview,
		contextHash: hash,
		createdAt:   c.now(),
	}
	if len(c.entries) > PreviewCacheMax {
		c.evictLocked()
	}
}

// evictLocked drops the oldest PreviewEvictFraction of entries by
// timestamp. Caller holds the mutex.
func (c *PreviewCache) evictLocked() {
	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })

	drop := int(math.Ceil(float64(len(all)) * PreviewEvictFraction))
	for i := 0; i < drop && i < len(all); i++ {
		delete(c.entries, all[i].key)
	}
}

// InvalidateUser removes every cache entry whose key references the user
// id, covering all posts that user viewed.
func (c *PreviewCache) InvalidateUser(userID string) int {
	if userID == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, userID) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidatePost removes every cache entry for the post, regardless of
// viewer context.
func (c *PreviewCache) InvalidatePost(postID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	prefix := postID + "|"
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache.
func (c *PreviewCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]previewEntry)
}

// Stats reports the cache's size against its cap.
func (c *PreviewCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:     len(c.entries),
		MemoryUnits: 0.5 * float64(len(c.entries)),
		FillPercent: float64(len(c.entries)) / PreviewCacheMax * 100,
		Hits:        c.hits,
		Misses:      c.misses,
	}
}

// HitRate returns the fraction of lookups served from cache.
func (c *PreviewCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func fallbackPreview(postID, reason string) domain.PostPreview {
	return domain.PostPreview{
		PostID:         postID,
		Content:        "Content not available",
		Author:         domain.AuthorSummary{Username: "unknown", DisplayName: "Unknown"},
		IsFallback:     true,
		FallbackReason: reason,
	}
}
