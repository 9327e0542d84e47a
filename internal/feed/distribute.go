package feed

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// Author-group priority tiers, highest first.
const (
	prioritySelf = iota + 1
	priorityFollowedAmbassador
	priorityFollowedRegular
	priorityUnfollowedAmbassador
	priorityUnfollowedRegular
)

// Distributor turns a deduplicated candidate pool into a fairness-
// constrained feed: no author exceeds PerAuthorCap slots, every followed
// author with an eligible post is represented before unfollowed authors get
// seconds, and each author's own posts keep a recency/engagement order.
type Distributor struct {
	rng *rand.Rand
}

// NewDistributor creates a distributor using the given random source for
// the final light-randomization pass. A nil source gets a time-seeded one;
// tests inject a fixed seed for determinism.
func NewDistributor(rng *rand.Rand) *Distributor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Distributor{rng: rng}
}

// authorGroup is the ephemeral per-request grouping of the pool by author.
type authorGroup struct {
	authorID   string
	priority   int
	budget     int
	ambassador bool
	posts      []domain.Post
}

// Distribute produces the final ordered feed, no longer than targetSize.
func (d *Distributor) Distribute(posts []domain.Post, followingIDs []string, viewerID string, targetSize int) []domain.Post {
	if len(posts) == 0 || targetSize <= 0 {
		return nil
	}

	following := make(map[string]struct{}, len(followingIDs))
	for _, id := range followingIDs {
		following[id] = struct{}{}
	}

	groups := groupByAuthor(posts, following, viewerID)
	allocateBudgets(groups, targetSize)

	now := time.Now()
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].priority != groups[j].priority {
			return groups[i].priority < groups[j].priority
		}
		return compositeScore(groups[i].posts[0], now) > compositeScore(groups[j].posts[0], now)
	})

	limit := targetSize
	if limit > SafetyLimit {
		limit = SafetyLimit
	}

	// Round-robin: one post per author per round, priority order, until
	// the slots are spent or every queue is empty.
	out := make([]domain.Post, 0, limit)
	for len(out) < limit {
		emitted := false
		for i := range groups {
			g := &groups[i]
			if g.budget == 0 || len(g.posts) == 0 {
				continue
			}
			out = append(out, g.posts[0])
			g.posts = g.posts[1:]
			g.budget--
			emitted = true
			if len(out) >= limit {
				break
			}
		}
		if !emitted {
			break
		}
	}

	// Light shuffle so the ordering isn't perfectly gameable.
	for i := 0; i+1 < len(out); i++ {
		if d.rng.Float64() < SwapProbability {
			out[i], out[i+1] = out[i+1], out[i]
		}
	}

	if len(out) > targetSize {
		out = out[:targetSize]
	}
	return out
}

func groupByAuthor(posts []domain.Post, following map[string]struct{}, viewerID string) []authorGroup {
	byAuthor := make(map[string]*authorGroup)
	order := make([]string, 0)
	for _, p := range posts {
		g, ok := byAuthor[p.AuthorID]
		if !ok {
			g = &authorGroup{authorID: p.AuthorID}
			byAuthor[p.AuthorID] = g
			order = append(order, p.AuthorID)
		}
		g.posts = append(g.posts, p)
		if p.IsAmbassador {
			g.ambassador = true
		}
	}

	now := time.Now()
	groups := make([]authorGroup, 0, len(byAuthor))
	for _, id := range order {
		g := byAuthor[id]
		_, followed := following[id]
		switch {
		case id == viewerID:
			g.priority = prioritySelf
		case followed && g.ambassador:
			g.priority = priorityFollowedAmbassador
		case followed:
			g.priority = priorityFollowedRegular
		case g.ambassador:
			g.priority = priorityUnfollowedAmbassador
		default:
			g.priority = priorityUnfollowedRegular
		}
		sort.SliceStable(g.posts, func(i, j int) bool {
			return compositeScore(g.posts[i], now) > compositeScore(g.posts[j], now)
		})
		groups = append(groups, *g)
	}
	return groups
}

// allocateBudgets reserves FollowedShare of the target for followed authors
// (the viewer counts as followed), splitting each side evenly with a floor
// of one and a ceiling of PerAuthorCap per author.
func allocateBudgets(groups []authorGroup, targetSize int) {
	followedAuthors, unfollowedAuthors := 0, 0
	for _, g := range groups {
		if g.priority <= priorityFollowedRegular {
			followedAuthors++
		} else {
			unfollowedAuthors++
		}
	}

	followedSlots := int(math.Floor(float64(targetSize) * FollowedShare))
	remainder := targetSize - followedSlots

	perFollowed := 0
	if followedAuthors > 0 {
		perFollowed = clampBudget(int(math.Ceil(float64(followedSlots) / float64(followedAuthors))))
	}
	perUnfollowed := 0
	if unfollowedAuthors > 0 {
		perUnfollowed = clampBudget(int(math.Ceil(float64(remainder) / float64(unfollowedAuthors))))
	}

	for i := range groups {
		if groups[i].priority <= priorityFollowedRegular {
			groups[i].budget = perFollowed
		} else {
			groups[i].budget = perUnfollowed
		}
	}
}

func clampBudget(n int) int {
	if n < 1 {
		return 1
	}
	if n > PerAuthorCap {
		return PerAuthorCap
	}
	return n
}

// compositeScore ranks a post within its author's queue. Engagement and
// comments weigh double, likes one and a half, and a recency bonus decays
// linearly from 10 to 0 over the first 24 hours.
func compositeScore(p domain.Post, now time.Time) float64 {
	score := 2*p.EngagementScore + 1.5*float64(p.LikeCount) + 2*float64(p.CommentCount)
	age := now.Sub(p.CreatedAt)
	if age < 0 {
		age = 0
	}
	if age < 24*time.Hour {
		score += 10 * (1 - age.Hours()/24)
	}
	return score
}
