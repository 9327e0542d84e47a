package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by store lookups when no matching row exists.
var ErrNotFound = errors.New("not found")

// ContentStore is the read surface the feed cascade queries. All post
// queries return results ordered newest-first unless stated otherwise.
type ContentStore interface {
	// PostsByAuthors retrieves posts authored by any of authorIDs whose
	// visibility is in visibilities, ordered by recency, range-paginated.
	PostsByAuthors(ctx context.Context, authorIDs []string, visibilities []Visibility, limit, offset int) ([]Post, error)

	// HighlightsByAuthors retrieves public-highlight posts from the given
	// authors only.
	HighlightsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]Post, error)

	// TopHighlights retrieves public-highlight posts from any author,
	// ordered by engagement score then recency.
	TopHighlights(ctx context.Context, limit int) ([]Post, error)

	// AmbassadorPosts retrieves ambassador-flagged posts from any author.
	AmbassadorPosts(ctx context.Context, limit int) ([]Post, error)

	// GetPost retrieves a single post by id. Returns ErrNotFound if the
	// post does not exist.
	GetPost(ctx context.Context, id string) (*Post, error)
}

// EngagementStore provides the enrichment lookups previews need: the author
// profile slice and the two engagement count queries.
type EngagementStore interface {
	// GetAuthorSummary retrieves the profile summary for a user. Returns
	// ErrNotFound if the user does not exist.
	GetAuthorSummary(ctx context.Context, userID string) (*AuthorSummary, error)

	// CountLikes returns the number of likes on a post.
	CountLikes(ctx context.Context, postID string) (int, error)

	// CountComments returns the number of comments on a post.
	CountComments(ctx context.Context, postID string) (int, error)
}

// FollowStore resolves follow edges.
type FollowStore interface {
	// FollowingIDs returns the ids of every user the given user follows.
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// PrivacyFilter is the sanitization collaborator. It removes posts the
// viewer must not see; callers treat it as opaque and only inspect whether
// the returned list is empty.
type PrivacyFilter interface {
	SanitizePostsForUser(ctx context.Context, posts []Post, viewer ViewerContext) ([]Post, error)
}

// ContentWriter defines the write operations used by the ingest subscriber
// and the seed CLI.
type ContentWriter interface {
	UpsertUser(ctx context.Context, user *AuthorSummary) error
	CreatePost(ctx context.Context, post *Post) error
	DeletePost(ctx context.Context, id string) error
	AddFollow(ctx context.Context, followerID, followedID string) error
	AddLike(ctx context.Context, postID, userID string) error
	AddComment(ctx context.Context, postID, userID, body string) error
}

// CursorStore persists the ingest stream cursor so the subscriber can
// resume after a restart.
type CursorStore interface {
	// GetCursor retrieves the last-processed cursor for the given stream.
	// Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, stream string) (int64, error)

	// UpdateCursor persists the cursor for the given stream.
	UpdateCursor(ctx context.Context, stream string, cursor int64) error
}
