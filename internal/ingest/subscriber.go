// Package ingest subscribes to the platform's content-event stream and
// mirrors post create/delete events into the local content store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

const (
	cursorStreamName   = "content-events"
	cursorSaveInterval = 5 * time.Second
	reconnectBackoff   = 5 * time.Second
	statsLogInterval   = 30 * time.Second
)

// Store is what the subscriber needs from the content store: post writes
// plus cursor persistence for resuming after a restart.
type Store interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, id string) error
	GetCursor(ctx context.Context, stream string) (int64, error)
	UpdateCursor(ctx context.Context, stream string, cursor int64) error
}

// Subscriber connects to the content-event stream and processes events.
type Subscriber struct {
	url    string
	store  Store
	logger *slog.Logger
}

// NewSubscriber creates a content-event subscriber.
func NewSubscriber(streamURL string, store Store, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		url:    streamURL,
		store:  store,
		logger: logger,
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectBackoff):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, err := url.Parse(s.url)
	if err != nil {
		return s.url
	}
	if cursor > 0 {
		q := u.Query()
		q.Set("cursor", fmt.Sprintf("%d", cursor))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.store.GetCursor(ctx, cursorStreamName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to content-event stream", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to content-event stream")

	lastCursorSave := time.Now()
	var latestCursor int64
	var eventsReceived, postsCreated, postsDeleted int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		latestCursor = event.TimeUS

		switch event.Kind {
		case kindPostCreate:
			if err := s.handleCreate(ctx, event); err != nil {
				s.logger.Error("failed to store post", "error", err)
			} else {
				postsCreated++
			}
		case kindPostDelete:
			if err := s.store.DeletePost(ctx, event.PostID); err != nil {
				s.logger.Error("failed to delete post", "post_id", event.PostID, "error", err)
			} else {
				postsDeleted++
			}
		}

		if time.Since(lastStatsLog) >= statsLogInterval {
			s.logger.Info("stream stats",
				"events_received", eventsReceived,
				"posts_created", postsCreated,
				"posts_deleted", postsDeleted,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.store.UpdateCursor(ctx, cursorStreamName, latestCursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

func (s *Subscriber) handleCreate(ctx context.Context, event *contentEvent) error {
	if event.Post == nil {
		return fmt.Errorf("create event without post payload")
	}
	post := event.Post.toDomain()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	return s.store.CreatePost(ctx, post)
}
