package model

import "time"

// CollectionItem is one photo in a user's personal gallery.
type CollectionItem struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ImageURL    string    `json:"image_url"`
	ImageKey    string    `json:"-"`
	Description string    `json:"description"`
	Likes       int       `json:"likes"`
	CreatedAt   time.Time `json:"created_at"`
}
