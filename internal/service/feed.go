package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/realtime"
	"github.com/sakif/bird-dropper/internal/repository"
	"github.com/sakif/bird-dropper/internal/storage"
)

// Post and comment limits, in characters.
const (
	MaxCaptionLength  = 2000
	MaxLocationLength = 200
	MaxCommentLength  = 1000
	FeedLimit         = 50
)

// FeedService owns posts, likes and comments.
type FeedService struct {
	posts    repository.PostRepository
	store    storage.Store
	notifier Broadcaster
	logger   *slog.Logger
	now      func() time.Time
}

// NewFeedService creates a FeedService. notifier receives an event after
// every like toggle and every new comment.
func NewFeedService(posts repository.PostRepository, store storage.Store, notifier Broadcaster, logger *slog.Logger) *FeedService {
	return &FeedService{
		posts:    posts,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreatePost stores the image, then inserts the post.
// If the insert fails the stored image is deleted again.
func (s *FeedService) CreatePost(ctx context.Context, authorID, caption, location string, img Upload) (*model.Post, error) {
	caption = strings.TrimSpace(caption)
	location = strings.TrimSpace(location)

	if err := validateImage("image", img); err != nil {
		return nil, err
	}
	if tooLong(caption, MaxCaptionLength) {
		return nil, apperror.ValidationFailed("caption",
			fmt.Sprintf("Caption must be %d characters or less", MaxCaptionLength))
	}
	if tooLong(location, MaxLocationLength) {
		return nil, apperror.ValidationFailed("location",
			fmt.Sprintf("Location must be %d characters or less", MaxLocationLength))
	}

	key := storage.ObjectKey(storage.PrefixPosts, authorID, img.Filename, s.now())
	url, err := s.store.Put(ctx, key, img.Body, img.Size, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("storing post image: %w", err)
	}

	post := &model.Post{
		StudentID: authorID,
		ImageURL:  url,
		ImageKey:  key,
		Caption:   caption,
		Location:  location,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		discardObject(ctx, s.store, s.logger, key)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("author", authorID),
	)
	return post, nil
}

// DeletePost removes a post owned by userID.
//
// A missing post is NotFound; someone else's post is Forbidden and nothing
// is touched. The image is deleted after the row, best effort.
func (s *FeedService) DeletePost(ctx context.Context, userID, postID string) error {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if post.StudentID != userID {
		return apperror.Forbidden("You can only delete your own posts")
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	discardObject(ctx, s.store, s.logger, post.ImageKey)

	s.logger.Info("post deleted", slog.String("id", postID))
	return nil
}

// ToggleLike likes the post if userID has not liked it yet, otherwise
// removes the like. The result carries the new state and count.
func (s *FeedService) ToggleLike(ctx context.Context, userID, postID string) (model.LikeResult, error) {
	res, err := s.posts.TogglePostLike(ctx, postID, userID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggling like: %w", err)
	}
	s.notifier.Broadcast(realtime.EventNotification)
	return res, nil
}

// AddComment posts a comment on postID.
func (s *FeedService) AddComment(ctx context.Context, userID, postID, body string) (*model.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.ValidationFailed("comment", "Comment cannot be empty")
	}
	if tooLong(body, MaxCommentLength) {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("Comment must be %d characters or less", MaxCommentLength))
	}

	c := &model.Comment{PostID: postID, StudentID: userID, Body: body}
	if err := s.posts.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	s.notifier.Broadcast(realtime.EventNotification)
	return c, nil
}

// DeleteComment removes a comment written by userID.
func (s *FeedService) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.posts.GetCommentByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if c.StudentID != userID {
		return apperror.Forbidden("You can only delete your own comments")
	}
	if err := s.posts.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return nil
}

// Feed returns the newest posts. With followingOnly, only posts by users the
// viewer follows are included.
func (s *FeedService) Feed(ctx context.Context, viewerID string, followingOnly bool) ([]model.FeedPost, error) {
	posts, err := s.posts.ListFeed(ctx, repository.FeedOptions{
		ViewerID:      viewerID,
		FollowingOnly: followingOnly,
		Limit:         FeedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing feed: %w", err)
	}
	return posts, nil
}

// UserPosts returns authorID's own posts, as shown on the profile page.
func (s *FeedService) UserPosts(ctx context.Context, viewerID, authorID string) ([]model.FeedPost, error) {
	posts, err := s.posts.ListFeed(ctx, repository.FeedOptions{
		ViewerID: viewerID,
		AuthorID: authorID,
		Limit:    FeedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing posts of %s: %w", authorID, err)
	}
	return posts, nil
}
