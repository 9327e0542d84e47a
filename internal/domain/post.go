package domain

import "time"

// Visibility is the audience tier of a post. Together with the ambassador
// flag it determines which feed query tiers may surface the post.
type Visibility string

const (
	// VisibilityPrivate posts are visible to the author only.
	VisibilityPrivate Visibility = "private"

	// VisibilityFriends posts are visible to the author's followers.
	VisibilityFriends Visibility = "friends"

	// VisibilityPublic posts are visible to everyone.
	VisibilityPublic Visibility = "public"

	// VisibilityHighlight marks a public post promoted into the
	// highlight pool that fallback feed tiers draw from.
	VisibilityHighlight Visibility = "public_highlight"
)

// MediaKind describes the attachment on a post, if any.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Post is the atomic content unit. Post ids are unique across all
// visibility tiers, so cross-tier result sets can be deduplicated by id.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	MediaURL  string    `json:"media_url,omitempty"`
	MediaKind MediaKind `json:"media_kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Visibility Visibility `json:"visibility"`

	// IsAmbassador marks sponsored or in-house ambassador content,
	// which feed composition caps at a fixed share of the pool.
	IsAmbassador bool `json:"is_ambassador"`

	// EngagementScore is precomputed by the engagement pipeline.
	EngagementScore float64 `json:"engagement_score"`
	LikeCount       int     `json:"like_count"`
	CommentCount    int     `json:"comment_count"`
}

// ContentType buckets a post for diversity scoring. There are four kinds:
// text, photo, video and highlight.
func (p Post) ContentType() string {
	if p.Visibility == VisibilityHighlight {
		return "highlight"
	}
	switch p.MediaKind {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	default:
		return "text"
	}
}

// AuthorSummary is the slice of a user profile that previews embed.
type AuthorSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	IsAmbassador bool   `json:"is_ambassador"`
	IsCoach      bool   `json:"is_coach"`
}
