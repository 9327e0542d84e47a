// Package sqlite implements the content store gateway over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	is_ambassador INTEGER NOT NULL DEFAULT 0,
	is_coach      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS posts (
	id               TEXT PRIMARY KEY,
	author_id        TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	media_url        TEXT NOT NULL DEFAULT '',
	media_kind       TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	visibility       TEXT NOT NULL DEFAULT 'public',
	is_ambassador    INTEGER NOT NULL DEFAULT 0,
	engagement_score REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_visibility ON posts (visibility, created_at DESC);

CREATE TABLE IF NOT EXISTS follows (
	follower_id TEXT NOT NULL,
	followed_id TEXT NOT NULL,
	PRIMARY KEY (follower_id, followed_id)
);

CREATE TABLE IF NOT EXISTS likes (
	post_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments (post_id);

CREATE TABLE IF NOT EXISTS cursors (
	stream       TEXT PRIMARY KEY,
	cursor_value INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
`

// postColumns selects a full post row with its derived engagement counts.
const postColumns = `
	p.id, p.author_id, p.content, p.media_url, p.media_kind, p.created_at,
	p.visibility, p.is_ambassador, p.engagement_score,
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)`

// Repository implements the domain store ports over a SQLite database.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, verifies the
// connection and ensures the schema exists. The caller should Close the
// repository when done.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent request handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// PostsByAuthors retrieves posts by any of authorIDs in the given
// visibility tiers, newest first, range-paginated.
func (r *Repository) PostsByAuthors(ctx context.Context, authorIDs []string, visibilities []domain.Visibility, limit, offset int) ([]domain.Post, error) {
	if len(authorIDs) == 0 || len(visibilities) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(authorIDs)+len(visibilities)+2)
	for _, id := range authorIDs {
		args = append(args, id)
	}
	for _, v := range visibilities {
		args = append(args, string(v))
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s FROM posts p
		WHERE p.author_id IN (%s) AND p.visibility IN (%s)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?`,
		postColumns, placeholders(len(authorIDs)), placeholders(len(visibilities)))

	return r.queryPosts(ctx, query, args...)
}

// HighlightsByAuthors retrieves public-highlight posts from the given
// authors only.
func (r *Repository) HighlightsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]domain.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(authorIDs)+1)
	for _, id := range authorIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM posts p
		WHERE p.author_id IN (%s) AND p.visibility = 'public_highlight'
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`,
		postColumns, placeholders(len(authorIDs)))

	return r.queryPosts(ctx, query, args...)
}

// TopHighlights retrieves public-highlight posts from any author, ordered
// by engagement score then recency.
func (r *Repository) TopHighlights(ctx context.Context, limit int) ([]domain.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts p
		WHERE p.visibility = 'public_highlight'
		ORDER BY p.engagement_score DESC, p.created_at DESC
		LIMIT ?`, postColumns)

	return r.queryPosts(ctx, query, limit)
}

// AmbassadorPosts retrieves ambassador-flagged posts from any author.
func (r *Repository) AmbassadorPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts p
		WHERE p.is_ambassador = 1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`, postColumns)

	return r.queryPosts(ctx, query, limit)
}

// GetPost retrieves a single post by id.
func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	query := fmt.Sprintf(`SELECT %s FROM posts p WHERE p.id = ?`, postColumns)
	posts, err := r.queryPosts(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, domain.ErrNotFound
	}
	return &posts[0], nil
}

// GetAuthorSummary retrieves the profile slice previews embed.
func (r *Repository) GetAuthorSummary(ctx context.Context, userID string) (*domain.AuthorSummary, error) {
	var (
		summary               domain.AuthorSummary
		isAmbassador, isCoach int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, avatar_url, is_ambassador, is_coach
		FROM users WHERE id = ?`, userID,
	).Scan(&summary.ID, &summary.Username, &summary.DisplayName, &summary.AvatarURL, &isAmbassador, &isCoach)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query author summary: %w", err)
	}
	summary.IsAmbassador = isAmbassador == 1
	summary.IsCoach = isCoach == 1
	return &summary, nil
}

// CountLikes returns the like count for a post.
func (r *Repository) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

// CountComments returns the comment count for a post.
func (r *Repository) CountComments(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE post_id = ?`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

// FollowingIDs returns the ids of every user the given user follows.
func (r *Repository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT followed_id FROM follows WHERE follower_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertUser inserts or updates a user profile.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.AuthorSummary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, avatar_url, is_ambassador, is_coach)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			is_ambassador = excluded.is_ambassador,
			is_coach = excluded.is_coach`,
		user.ID, user.Username, user.DisplayName, user.AvatarURL,
		boolToInt(user.IsAmbassador), boolToInt(user.IsCoach),
	)
	return err
}

// CreatePost inserts a new post. Re-delivered events are ignored.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, author_id, content, media_url, media_kind, created_at, visibility, is_ambassador, engagement_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		post.ID, post.AuthorID, post.Content, post.MediaURL, string(post.MediaKind),
		post.CreatedAt.UnixMilli(), string(post.Visibility),
		boolToInt(post.IsAmbassador), post.EngagementScore,
	)
	return err
}

// DeletePost removes a post and its engagement rows.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM likes WHERE post_id = ?`,
		`DELETE FROM comments WHERE post_id = ?`,
		`DELETE FROM posts WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
	}
	return tx.Commit()
}

// AddFollow records a follow edge.
func (r *Repository) AddFollow(ctx context.Context, followerID, followedID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)
		ON CONFLICT (follower_id, followed_id) DO NOTHING`,
		followerID, followedID)
	return err
}

// AddLike records a like.
func (r *Repository) AddLike(ctx context.Context, postID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO likes (post_id, user_id) VALUES (?, ?)
		ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID)
	return err
}

// AddComment records a comment.
func (r *Repository) AddComment(ctx context.Context, postID, userID, body string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (post_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?)`,
		postID, userID, body, time.Now().UTC().UnixMilli())
	return err
}

// GetCursor retrieves the saved ingest cursor for a stream.
func (r *Repository) GetCursor(ctx context.Context, stream string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE stream = ?`, stream,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the ingest cursor for a stream.
func (r *Repository) UpdateCursor(ctx context.Context, stream string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (stream, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (stream) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		stream, cursor, time.Now().UTC().UnixMilli())
	return err
}

func (r *Repository) queryPosts(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			p                     domain.Post
			createdAt             int64
			mediaKind, visibility string
			isAmbassador          int
		)
		err := rows.Scan(
			&p.ID, &p.AuthorID, &p.Content, &p.MediaURL, &mediaKind, &createdAt,
			&visibility, &isAmbassador, &p.EngagementScore,
			&p.LikeCount, &p.CommentCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.MediaKind = domain.MediaKind(mediaKind)
		p.Visibility = domain.Visibility(visibility)
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		p.IsAmbassador = isAmbassador == 1
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
