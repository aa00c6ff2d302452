package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// SearchLimit caps user search results.
const SearchLimit = 5

// FollowService manages the follow graph.
type FollowService struct {
	follows repository.FollowRepository
	logger  *slog.Logger
}

// NewFollowService creates a FollowService.
func NewFollowService(follows repository.FollowRepository, logger *slog.Logger) *FollowService {
	return &FollowService{follows: follows, logger: logger}
}

// Search finds users whose username contains query, ignoring case.
// The viewer is never in the results. An empty query returns no results
// without touching the database.
func (s *FollowService) Search(ctx context.Context, viewerID, query string) ([]model.UserSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.UserSearchResult{}, nil
	}
	results, err := s.follows.SearchStudents(ctx, viewerID, query, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return results, nil
}

// Follow makes viewerID follow targetID. Following twice is not an error.
func (s *FollowService) Follow(ctx context.Context, viewerID, targetID string) error {
	if err := s.follows.Follow(ctx, viewerID, targetID); err != nil {
		return fmt.Errorf("following %s: %w", targetID, err)
	}
	s.logger.Debug("follow", slog.String("follower", viewerID), slog.String("followee", targetID))
	return nil
}

// Unfollow removes the edge if it exists.
func (s *FollowService) Unfollow(ctx context.Context, viewerID, targetID string) error {
	if err := s.follows.Unfollow(ctx, viewerID, targetID); err != nil {
		return fmt.Errorf("unfollowing %s: %w", targetID, err)
	}
	return nil
}

// Connections returns who the viewer follows and who follows the viewer.
//
// The two lists come from two independent queries. follows_back on each
// follower is plain set membership against the following list, no third
// query needed.
func (s *FollowService) Connections(ctx context.Context, viewerID string) (*model.Connections, error) {
	following, err := s.follows.ListFollowing(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing following: %w", err)
	}
	followers, err := s.follows.ListFollowers(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing followers: %w", err)
	}

	followed := make(map[string]struct{}, len(following))
	for _, u := range following {
		followed[u.ID] = struct{}{}
	}

	conns := &model.Connections{
		Following: following,
		Followers: make([]model.Follower, 0, len(followers)),
	}
	if conns.Following == nil {
		conns.Following = []model.UserSummary{}
	}
	for _, u := range followers {
		_, back := followed[u.ID]
		conns.Followers = append(conns.Followers, model.Follower{UserSummary: u, FollowsBack: back})
	}
	return conns, nil
}
