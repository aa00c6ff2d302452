package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/bird-dropper/internal/repository"
)

// NotificationLimit is how many likes, and separately how many comments,
// are shown.
const NotificationLimit = 5

// NotificationService renders recent activity on a user's posts.
type NotificationService struct {
	activity repository.NotificationRepository
	logger   *slog.Logger
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(activity repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{activity: activity, logger: logger}
}

// Recent returns human-readable notifications for userID: the latest likes
// first, then the latest comments. The two groups are not merged by time.
func (s *NotificationService) Recent(ctx context.Context, userID string) ([]string, error) {
	likes, err := s.activity.RecentLikes(ctx, userID, NotificationLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent likes: %w", err)
	}
	comments, err := s.activity.RecentComments(ctx, userID, NotificationLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent comments: %w", err)
	}

	out := make([]string, 0, len(likes)+len(comments))
	for _, l := range likes {
		out = append(out, fmt.Sprintf("%s liked your post", l.Username))
	}
	for _, c := range comments {
		out = append(out, fmt.Sprintf("%s commented on your post: \"%s\"", c.Username, c.Body))
	}
	return out, nil
}
