package domain

import "time"

// ViewerContext identifies who is looking at content and carries the coarse
// signals that can change what they are allowed to see. FollowingIDs is the
// set of author ids the viewer follows; IsCoach widens friends-tier
// visibility to coached players.
type ViewerContext struct {
	UserID       string
	FollowingIDs []string
	IsCoach      bool
}

// Follows reports whether the viewer follows the given author.
func (v ViewerContext) Follows(authorID string) bool {
	for _, id := range v.FollowingIDs {
		if id == authorID {
			return true
		}
	}
	return false
}

// PostPreview is the rendered single-post summary served to UI cards. When
// the full content is not visible to the viewer, IsFallback is set and
// Content holds a generic placeholder rather than the real body.
type PostPreview struct {
	PostID         string        `json:"post_id"`
	Content        string        `json:"content"`
	MediaURL       string        `json:"media_url,omitempty"`
	MediaKind      MediaKind     `json:"media_kind,omitempty"`
	Author         AuthorSummary `json:"author"`
	LikeCount      int           `json:"like_count"`
	CommentCount   int           `json:"comment_count"`
	Visibility     Visibility    `json:"visibility"`
	CreatedAt      time.Time     `json:"created_at"`
	IsFallback     bool          `json:"is_fallback"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
}

// TierMetric records how one cascade tier performed during a single feed
// request. Purely observability state; never persisted.
type TierMetric struct {
	Tier      string        `json:"tier"`
	Source    string        `json:"source"`
	PostCount int           `json:"post_count"`
	Duration  time.Duration `json:"duration"`
	Errors    int           `json:"errors"`
}

// CascadeResult is the output of one query-cascade execution.
type CascadeResult struct {
	Posts                []Post        `json:"posts"`
	Metrics              []TierMetric  `json:"metrics"`
	TotalPosts           int           `json:"total_posts"`
	AmbassadorPercentage float64       `json:"ambassador_percentage"`
	TotalQueryTime       time.Duration `json:"total_query_time"`
	CacheHitRate         float64       `json:"cache_hit_rate"`
}
