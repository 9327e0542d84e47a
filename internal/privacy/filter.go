// Package privacy implements the post-sanitization collaborator. Feed and
// preview code treat it as an opaque filter and only inspect whether its
// output is empty.
package privacy

import (
	"context"

	"github.com/courtsidehq/courtside-feeds/internal/domain"
)

// Filter removes posts the viewer is not allowed to see, based on the
// post's visibility tier and the viewer's follow set:
//
//   - public and public-highlight posts are visible to everyone
//   - friends posts are visible to the author's followers, and to coaches
//   - private posts are visible to the author only
type Filter struct{}

// NewFilter creates a privacy filter.
func NewFilter() *Filter {
	return &Filter{}
}

// SanitizePostsForUser returns the subset of posts visible to the viewer,
// preserving order.
func (f *Filter) SanitizePostsForUser(_ context.Context, posts []domain.Post, viewer domain.ViewerContext) ([]domain.Post, error) {
	visible := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if f.canSee(p, viewer) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func (f *Filter) canSee(p domain.Post, viewer domain.ViewerContext) bool {
	if p.AuthorID == viewer.UserID {
		return true
	}
	switch p.Visibility {
	case domain.VisibilityPublic, domain.VisibilityHighlight:
		return true
	case domain.VisibilityFriends:
		return viewer.Follows(p.AuthorID) || viewer.IsCoach
	default:
		return false
	}
}
