package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// setupTestRepo creates an in-memory SQLite repository.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedPost(t *testing.T, repo *Repository, id, author string, vis domain.Visibility, ambassador bool, score float64, createdAt time.Time) {
	t.Helper()
	err := repo.CreatePost(context.Background(), &domain.Post{
		ID:              id,
		AuthorID:        author,
		Content:         "content of " + id,
		CreatedAt:       createdAt,
		Visibility:      vis,
		IsAmbassador:    ambassador,
		EngagementScore: score,
	})
	require.NoError(t, err)
}

func TestPostsByAuthorsFiltersAndPaginates(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		seedPost(t, repo, fmt.Sprintf("a%d", i), "alice", domain.VisibilityPublic, false, 0, base.Add(-time.Duration(i)*time.Minute))
	}
	seedPost(t, repo, "priv", "alice", domain.VisibilityPrivate, false, 0, base)
	seedPost(t, repo, "other", "mallory", domain.VisibilityPublic, false, 0, base)

	vis := []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends, domain.VisibilityHighlight}

	page1, err := repo.PostsByAuthors(ctx, []string{"alice"}, vis, 3, 0)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	assert.Equal(t, "a0", page1[0].ID, "newest first")
	for _, p := range page1 {
		assert.Equal(t, "alice", p.AuthorID)
		assert.NotEqual(t, domain.VisibilityPrivate, p.Visibility)
	}

	page2, err := repo.PostsByAuthors(ctx, []string{"alice"}, vis, 3, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "a3", page2[0].ID)
}

func TestPostsByAuthorsEmptyAuthorSet(t *testing.T) {
	repo := setupTestRepo(t)
	posts, err := repo.PostsByAuthors(context.Background(), nil, []domain.Visibility{domain.VisibilityPublic}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestHighlightQueries(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	seedPost(t, repo, "h1", "alice", domain.VisibilityHighlight, false, 5, base.Add(-time.Hour))
	seedPost(t, repo, "h2", "bob", domain.VisibilityHighlight, false, 9, base.Add(-2*time.Hour))
	seedPost(t, repo, "p1", "alice", domain.VisibilityPublic, false, 50, base)

	followed, err := repo.HighlightsByAuthors(ctx, []string{"alice"}, 10)
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, "h1", followed[0].ID)

	top, err := repo.TopHighlights(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "h2", top[0].ID, "ordered by engagement score, not recency")
}

func TestAmbassadorPosts(t *testing.T) {
	repo := setupTestRepo(t)
	base := time.Now().UTC()

	seedPost(t, repo, "amb1", "sponsor", domain.VisibilityPublic, true, 0, base)
	seedPost(t, repo, "reg1", "alice", domain.VisibilityPublic, false, 0, base)

	posts, err := repo.AmbassadorPosts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].IsAmbassador)
}

func TestGetPostWithEngagementCounts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	seedPost(t, repo, "p1", "alice", domain.VisibilityPublic, false, 0, time.Now().UTC())
	require.NoError(t, repo.AddLike(ctx, "p1", "u1"))
	require.NoError(t, repo.AddLike(ctx, "p1", "u2"))
	require.NoError(t, repo.AddLike(ctx, "p1", "u2")) // duplicate, ignored
	require.NoError(t, repo.AddComment(ctx, "p1", "u1", "nice shot"))

	post, err := repo.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, post.LikeCount)
	assert.Equal(t, 1, post.CommentCount)

	likes, err := repo.CountLikes(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, likes)

	comments, err := repo.CountComments(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, comments)
}

func TestGetPostNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.GetPost(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePostRemovesEngagement(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	seedPost(t, repo, "p1", "alice", domain.VisibilityPublic, false, 0, time.Now().UTC())
	require.NoError(t, repo.AddLike(ctx, "p1", "u1"))

	require.NoError(t, repo.DeletePost(ctx, "p1"))

	_, err := repo.GetPost(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	likes, err := repo.CountLikes(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, likes)
}

func TestUsersAndFollows(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, &domain.AuthorSummary{ID: "u1", Username: "rafa", DisplayName: "Rafa", IsCoach: true}))
	require.NoError(t, repo.UpsertUser(ctx, &domain.AuthorSummary{ID: "u1", Username: "rafa", DisplayName: "Rafael"}))

	summary, err := repo.GetAuthorSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Rafael", summary.DisplayName)
	assert.False(t, summary.IsCoach, "upsert replaces the profile")

	require.NoError(t, repo.AddFollow(ctx, "u1", "u2"))
	require.NoError(t, repo.AddFollow(ctx, "u1", "u3"))
	require.NoError(t, repo.AddFollow(ctx, "u1", "u2"))

	following, err := repo.FollowingIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2", "u3"}, following)
}

func TestCursorRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	cursor, err := repo.GetCursor(ctx, "content-events")
	require.NoError(t, err)
	assert.Zero(t, cursor, "missing cursor reads as zero")

	require.NoError(t, repo.UpdateCursor(ctx, "content-events", 42))
	require.NoError(t, repo.UpdateCursor(ctx, "content-events", 99))

	cursor, err = repo.GetCursor(ctx, "content-events")
	require.NoError(t, err)
	assert.Equal(t, int64(99), cursor)
}
