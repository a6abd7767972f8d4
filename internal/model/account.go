// Package model defines the data structures used throughout the gateway.
package model

import "time"

// Account is a registered user. Credentials never leave the service layer;
// callers receive a PublicProfile instead.
//
// Ratings is kept as an ordered slice rather than a map so the on-disk
// snapshot preserves submission order. GameID is unique within it.
type Account struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	PasswordSalt string    `json:"passwordSalt"`
	Categories   []string  `json:"categories"`
	CreatedAt    time.Time `json:"createdAt"`
	Ratings      []Rating  `json:"ratings"`
}

// Rating is one account's score for one game.
type Rating struct {
	GameID  int       `json:"gameId"`
	Title   string    `json:"title"`
	Image   *string   `json:"image"`
	Score   int       `json:"score"`
	RatedAt time.Time `json:"ratedAt"`
}

// RatingIndex returns the position of the rating for gameID, or -1.
func (a *Account) RatingIndex(gameID int) int {
	for i := range a.Ratings {
		if a.Ratings[i].GameID == gameID {
			return i
		}
	}
	return -1
}

// NewAccount holds the fields a caller supplies when creating an account.
// The store assigns ID and CreatedAt.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	PasswordSalt string
	Categories   []string
}

// RatingInput is the loosely typed rating submission as it arrives from
// clients. GameID and Score may be JSON numbers or numeric strings;
// Positive is only consulted when Score is not numeric.
type RatingInput struct {
	GameID   any    `json:"gameId"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Score    any    `json:"score"`
	Positive *bool  `json:"positive"`
	RatedAt  string `json:"ratedAt"`
}

// PublicProfile is the display-safe projection of an Account.
type PublicProfile struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Categories []string     `json:"categories"`
	CreatedAt  time.Time    `json:"createdAt"`
	Ratings    []Rating     `json:"ratings"`
	Stats      ProfileStats `json:"stats"`
}

// ProfileStats is derived from the ratings on every projection.
// AverageScore is nil when there are no ratings.
type ProfileStats struct {
	TotalRatings int      `json:"totalRatings"`
	AverageScore *float64 `json:"averageScore"`
}
