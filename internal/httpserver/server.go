// Package httpserver exposes feed composition to UI data-fetching hooks.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/courtsidehq/courtside-feeds/internal/config"
	"github.com/courtsidehq/courtside-feeds/internal/domain"
	"github.com/courtsidehq/courtside-feeds/internal/feed"
)

// Server is the HTTP server serving the feed API.
type Server struct {
	cfg         *config.Config
	engine      *feed.Engine
	distributor *feed.Distributor
	previews    *feed.PreviewCache
	analytics   *feed.Recorder
	follows     domain.FollowStore
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer wires the feed core behind HTTP routes.
func NewServer(cfg *config.Config, engine *feed.Engine, distributor *feed.Distributor, previews *feed.PreviewCache, analytics *feed.Recorder, follows domain.FollowStore, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		engine:      engine,
		distributor: distributor,
		previews:    previews,
		analytics:   analytics,
		follows:     follows,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withLogging(logger))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/feed", s.handleFeed)
		r.Get("/feed/quality", s.handleFeedQuality)
		r.Get("/posts/{postID}/preview", s.handlePreview)
		r.Get("/analytics/filtered", s.handleFilteredContent)
		r.Post("/analytics/clear", s.handleAnalyticsClear)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/clear", s.handleCacheClear)
		r.Post("/cache/invalidate", s.handleCacheInvalidate)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "user parameter is required")
		return
	}

	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "page must be a non-negative integer")
			return
		}
		page = parsed
	}

	following, err := s.follows.FollowingIDs(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load follow set", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to load follow set")
		return
	}

	result := s.engine.Execute(r.Context(), userID, following, page, nil)
	posts := s.distributor.Distribute(result.Posts, following, userID, feed.PostsPerPage)

	writeJSON(w, http.StatusOK, map[string]any{
		"posts":                 posts,
		"metrics":               result.Metrics,
		"total_posts":           len(posts),
		"ambassador_percentage": result.AmbassadorPercentage,
		"total_query_time_ms":   result.TotalQueryTime.Milliseconds(),
		"cache_hit_rate":        result.CacheHitRate,
	})
}

func (s *Server) handleFeedQuality(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "user parameter is required")
		return
	}

	following, err := s.follows.FollowingIDs(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load follow set", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to load follow set")
		return
	}

	result := s.engine.Execute(r.Context(), userID, following, 0, nil)
	posts := s.distributor.Distribute(result.Posts, following, userID, feed.PostsPerPage)
	report := s.analytics.AnalyzeFeedQuality(posts, following)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	viewerID := r.URL.Query().Get("viewer")
	if viewerID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "viewer parameter is required")
		return
	}

	following, err := s.follows.FollowingIDs(r.Context(), viewerID)
	if err != nil {
		s.logger.Warn("failed to load viewer follow set, using empty", "viewer", viewerID, "error", err)
		following = nil
	}

	viewer := domain.ViewerContext{
		UserID:       viewerID,
		FollowingIDs: following,
		IsCoach:      r.URL.Query().Get("coach") == "true",
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	preview := s.previews.GetPostPreview(r.Context(), postID, viewer, refresh)
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleFilteredContent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.analytics.FilteredContent())
}

func (s *Server) handleAnalyticsClear(w http.ResponseWriter, _ *http.Request) {
	s.analytics.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.previews.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.previews.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	postID := r.URL.Query().Get("post")
	if userID == "" && postID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "user or post parameter is required")
		return
	}

	removed := 0
	if userID != "" {
		removed += s.previews.InvalidateUser(userID)
	}
	if postID != "" {
		removed += s.previews.InvalidatePost(postID)
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
