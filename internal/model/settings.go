package model

import "time"

// WebsiteSettings is the single global settings row.
type WebsiteSettings struct {
	Theme     string    `json:"theme"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikeActivity is a like on one of the viewer's posts, used for notifications.
type LikeActivity struct {
	PostID    string
	Username  string
	CreatedAt time.Time
}

// CommentActivity is a comment on one of the viewer's posts.
type CommentActivity struct {
	PostID    string
	Username  string
	Body      string
	CreatedAt time.Time
}
