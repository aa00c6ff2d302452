// Package model defines the data structures used throughout the application.
package model

import "time"

// Student is a registered account. The table keeps the historical name
// "students"; everywhere else in the UI it is just a user.
//
// PasswordHash and ProfileImageKey never leave the server: they are tagged
// json:"-" so they cannot end up in an API response by accident.
type Student struct {
	ID                   string    `json:"id"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	Email                string    `json:"email"`
	Username             string    `json:"username"`
	PasswordHash         string    `json:"-"`
	Bio                  string    `json:"bio"`
	ProfileImageURL      string    `json:"profile_image_url"`
	ProfileImageKey      string    `json:"-"`
	Timezone             string    `json:"timezone"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	IsAdmin              bool      `json:"is_admin"`
	GitHubID             *int64    `json:"-"` // set once the account is linked to GitHub
	CreatedAt            time.Time `json:"created_at"`
}

// UserSummary is the minimal public view of a user used in lists.
type UserSummary struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// UserSearchResult is a search hit annotated with the viewer's follow state.
type UserSearchResult struct {
	UserSummary
	IsFollowing bool `json:"is_following"`
}

// Follower is an incoming follow edge annotated with whether the viewer
// follows that user back.
type Follower struct {
	UserSummary
	FollowsBack bool `json:"follows_back"`
}

// Connections is the combined following/followers view.
type Connections struct {
	Following []UserSummary `json:"following"`
	Followers []Follower    `json:"followers"`
}
