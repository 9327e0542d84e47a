// Command seed loads demo users, follows and posts into the content store
// so a fresh install has a feed to compose.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
	"github.com/courtsidehq/courtside-feeds/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dbPath string
		users  int
		posts  int
		seed   int64
	)

	flag.StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "courtside.db"), "SQLite database path")
	flag.IntVar(&users, "users", 12, "number of demo users to create")
	flag.IntVar(&posts, "posts", 80, "number of demo posts to create")
	flag.Int64Var(&seed, "seed", 1, "random seed for generated content")
	flag.Parse()

	repo, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(seed))

	ids := make([]string, 0, users)
	for i := 0; i < users; i++ {
		id := uuid.NewString()
		user := &domain.AuthorSummary{
			ID:           id,
			Username:     fmt.Sprintf("player%02d", i),
			DisplayName:  fmt.Sprintf("Player %02d", i),
			IsAmbassador: i%6 == 0,
			IsCoach:      i%5 == 0,
		}
		if err := repo.UpsertUser(ctx, user); err != nil {
			return fmt.Errorf("create user %s: %w", user.Username, err)
		}
		ids = append(ids, id)
	}
	fmt.Printf("Created %d users\n", users)

	// Each user follows roughly a third of the others.
	follows := 0
	for _, follower := range ids {
		for _, followed := range ids {
			if follower == followed || rng.Float64() > 0.33 {
				continue
			}
			if err := repo.AddFollow(ctx, follower, followed); err != nil {
				return fmt.Errorf("create follow: %w", err)
			}
			follows++
		}
	}
	fmt.Printf("Created %d follows\n", follows)

	visibilities := []domain.Visibility{
		domain.VisibilityPublic,
		domain.VisibilityPublic,
		domain.VisibilityFriends,
		domain.VisibilityHighlight,
		domain.VisibilityPrivate,
	}
	kinds := []domain.MediaKind{domain.MediaNone, domain.MediaNone, domain.MediaPhoto, domain.MediaVideo}
	bodies := []string{
		"First serve percentage finally above 60 today.",
		"Tiebreak practice until sunset. Legs are done.",
		"Match point saved with a backhand down the line!",
		"New string tension experiment: 23kg, feels great.",
		"Clay season prep starts this week.",
		"Doubles tournament this weekend, who's in?",
	}

	now := time.Now().UTC()
	for i := 0; i < posts; i++ {
		author := ids[rng.Intn(len(ids))]
		post := &domain.Post{
			ID:              uuid.NewString(),
			AuthorID:        author,
			Content:         bodies[rng.Intn(len(bodies))],
			MediaKind:       kinds[rng.Intn(len(kinds))],
			CreatedAt:       now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
			Visibility:      visibilities[rng.Intn(len(visibilities))],
			IsAmbassador:    rng.Float64() < 0.15,
			EngagementScore: rng.Float64() * 10,
		}
		if post.MediaKind != domain.MediaNone {
			post.MediaURL = fmt.Sprintf("https://media.courtside.example/%s", post.ID)
		}
		if err := repo.CreatePost(ctx, post); err != nil {
			return fmt.Errorf("create post: %w", err)
		}

		// Sprinkle engagement.
		for _, liker := range ids {
			if rng.Float64() < 0.2 {
				if err := repo.AddLike(ctx, post.ID, liker); err != nil {
					return fmt.Errorf("create like: %w", err)
				}
			}
		}
		if rng.Float64() < 0.4 {
			commenter := ids[rng.Intn(len(ids))]
			if err := repo.AddComment(ctx, post.ID, commenter, "Great footwork!"); err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
		}
	}
	fmt.Printf("Created %d posts in %s\n", posts, dbPath)

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
