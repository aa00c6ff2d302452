// Package repository defines the storage contracts the service layer depends on.
//
// Services only ever see these interfaces. The SQLite implementation in
// repository/sqlite satisfies all of them with a single *DB; the Redis package
// provides an alternative SessionStore.
package repository

import (
	"context"

	"github.com/sakif/bird-dropper/internal/model"
)

// FeedOptions selects which posts a feed query returns.
type FeedOptions struct {
	ViewerID      string // used for liked_by_viewer and the following filter
	FollowingOnly bool   // only posts by users the viewer follows
	AuthorID      string // only posts by this user (profile page)
	Limit         int
}

// StudentRepository stores user accounts.
type StudentRepository interface {
	CreateStudent(ctx context.Context, s *model.Student) error
	GetStudentByID(ctx context.Context, id string) (*model.Student, error)
	GetStudentByEmail(ctx context.Context, email string) (*model.Student, error)
	GetStudentByGitHubID(ctx context.Context, githubID int64) (*model.Student, error)
	LinkGitHub(ctx context.Context, studentID string, githubID int64) error
	UpdateBio(ctx context.Context, studentID, bio string) error
	UpdateUserSettings(ctx context.Context, studentID, timezone string, notifications bool) error
	UpdateProfileImage(ctx context.Context, studentID, url, key string) error
}

// PostRepository stores posts, their likes and their comments.
type PostRepository interface {
	CreatePost(ctx context.Context, p *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	DeletePost(ctx context.Context, id string) error
	ListFeed(ctx context.Context, opts FeedOptions) ([]model.FeedPost, error)
	TogglePostLike(ctx context.Context, postID, studentID string) (model.LikeResult, error)
	CreateComment(ctx context.Context, c *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

// FollowRepository stores the directed follow graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowing(ctx context.Context, studentID string) ([]model.UserSummary, error)
	ListFollowers(ctx context.Context, studentID string) ([]model.UserSummary, error)
	SearchStudents(ctx context.Context, viewerID, query string, limit int) ([]model.UserSearchResult, error)
}

// CollectionRepository stores gallery items and their likes.
//
// Ownership is part of every mutating query: a miss on (id, userID) is
// reported as not found, whether the row is absent or owned by someone else.
type CollectionRepository interface {
	CreateCollectionItems(ctx context.Context, items []*model.CollectionItem) error
	ListCollection(ctx context.Context, userID string) ([]model.CollectionItem, error)
	DeleteCollectionItem(ctx context.Context, id, userID string) (imageKey string, err error)
	UpdateCollectionDescription(ctx context.Context, id, userID, description string) error
	ToggleCollectionLike(ctx context.Context, collectionID, studentID string) (model.LikeResult, error)
}

// SettingsRepository stores the global website settings row.
type SettingsRepository interface {
	GetWebsiteSettings(ctx context.Context) (*model.WebsiteSettings, error)
	UpdateWebsiteSettings(ctx context.Context, theme, language string) error
}

// NotificationRepository reads recent activity on a user's posts.
// Actions performed by the owner themself are excluded.
type NotificationRepository interface {
	RecentLikes(ctx context.Context, ownerID string, limit int) ([]model.LikeActivity, error)
	RecentComments(ctx context.Context, ownerID string, limit int) ([]model.CommentActivity, error)
}

// SessionStore persists server-side sessions.
// GetSession returns apperror.ErrNotFound for unknown or expired ids.
type SessionStore interface {
	SaveSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}
