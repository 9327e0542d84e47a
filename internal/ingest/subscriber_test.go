package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	posts   map[string]*domain.Post
	deleted []string
	cursor  int64
}

func newMemStore() *memStore {
	return &memStore{posts: make(map[string]*domain.Post)}
}

func (m *memStore) CreatePost(_ context.Context, post *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	return nil
}

func (m *memStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) GetCursor(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, nil
}

func (m *memStore) UpdateCursor(_ context.Context, _ string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = cursor
	return nil
}

func (m *memStore) postCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

func (m *memStore) deletedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deleted)
}

// streamServer serves a websocket that replays the given events and then
// holds the connection open.
func streamServer(t *testing.T, events []contentEvent) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, event := range events {
			data, _ := json.Marshal(event)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSubscriberProcessesEvents(t *testing.T) {
	events := []contentEvent{
		{
			Kind:   kindPostCreate,
			TimeUS: 100,
			Post: &postRecord{
				ID:         "p1",
				AuthorID:   "alice",
				Content:    "match point",
				Visibility: string(domain.VisibilityPublic),
			},
		},
		{
			Kind:   kindPostCreate,
			TimeUS: 200,
			Post:   &postRecord{AuthorID: "bob", Content: "no id, gets one"},
		},
		{Kind: kindPostDelete, TimeUS: 300, PostID: "p1"},
	}
	server := streamServer(t, events)
	defer server.Close()

	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sub := NewSubscriber("ws"+strings.TrimPrefix(server.URL, "http"), store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sub.Start(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return store.deletedCount() == 1 })
	cancel()
	// Unblock the subscriber's pending read so it can observe cancellation.
	server.CloseClientConnections()
	<-done

	assert.Equal(t, 1, store.postCount(), "p1 created then deleted, bob's post remains")
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, post := range store.posts {
		assert.NotEmpty(t, id, "missing ids are filled in")
		assert.Equal(t, "bob", post.AuthorID)
		assert.Equal(t, domain.VisibilityPublic, post.Visibility, "visibility defaults to public")
	}
}

func TestSubscriberResumesFromSavedCursor(t *testing.T) {
	received := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.URL.Query().Get("cursor")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	store := newMemStore()
	store.cursor = 12345
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sub := NewSubscriber("ws"+strings.TrimPrefix(server.URL, "http"), store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Start(ctx)

	select {
	case cursor := <-received:
		assert.Equal(t, "12345", cursor)
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber never connected")
	}
}

func TestParseEventRejectsGarbage(t *testing.T) {
	_, err := parseEvent([]byte("{not json"))
	require.Error(t, err)
}
