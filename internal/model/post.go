package model

import "time"

// Post is a photo shared to the feed. ImageKey is the object-storage key used
// to remove the image when the post is deleted.
type Post struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ImageURL  string    `json:"image_url"`
	ImageKey  string    `json:"-"`
	Caption   string    `json:"caption"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a free-text reply to a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	StudentID string    `json:"student_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedPost is a post joined with its author, aggregate like count and comments.
type FeedPost struct {
	Post
	Username        string    `json:"username"`
	ProfileImageURL string    `json:"profile_image_url"`
	Likes           int       `json:"likes"`
	LikedByViewer   bool      `json:"liked_by_viewer"`
	Comments        []Comment `json:"comments"`
}

// LikeResult is what a like toggle returns: the new state and the new count.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
