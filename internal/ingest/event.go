package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// Event kinds emitted by the content-event stream.
const (
	kindPostCreate = "post_create"
	kindPostDelete = "post_delete"
)

// contentEvent is one message from the content-event stream. TimeUS is the
// stream cursor in microseconds.
type contentEvent struct {
	Kind   string      `json:"kind"`
	TimeUS int64       `json:"time_us"`
	PostID string      `json:"post_id,omitempty"`
	Post   *postRecord `json:"post,omitempty"`
}

// postRecord is the wire form of a post in a create event.
type postRecord struct {
	ID              string  `json:"id"`
	AuthorID        string  `json:"author_id"`
	Content         string  `json:"content"`
	MediaURL        string  `json:"media_url"`
	MediaKind       string  `json:"media_kind"`
	CreatedAtMillis int64   `json:"created_at"`
	Visibility      string  `json:"visibility"`
	IsAmbassador    bool    `json:"is_ambassador"`
	EngagementScore float64 `json:"engagement_score"`
}

func parseEvent(data []byte) (*contentEvent, error) {
	var event contentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

func (r *postRecord) toDomain() *domain.Post {
	visibility := domain.Visibility(r.Visibility)
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	createdAt := time.UnixMilli(r.CreatedAtMillis).UTC()
	if r.CreatedAtMillis == 0 {
		createdAt = time.Now().UTC()
	}
	return &domain.Post{
		ID:              r.ID,
		AuthorID:        r.AuthorID,
		Content:         r.Content,
		MediaURL:        r.MediaURL,
		MediaKind:       domain.MediaKind(r.MediaKind),
		CreatedAt:       createdAt,
		Visibility:      visibility,
		IsAmbassador:    r.IsAmbassador,
		EngagementScore: r.EngagementScore,
	}
}
