// Package share creates and resolves public share links for songs.
package share

import (
	"errors"
	"time"
)

// ErrGone marks a share link whose expiry has passed. Terminal; the
// link will never become valid again.
var ErrGone = errors.New("share link expired")

// ErrIDTaken is returned by a Store when the generated link id collides
// with an existing one.
var ErrIDTaken = errors.New("share id already taken")

// Link is a shareable pointer to a song.
type Link struct {
	ID        string    `json:"id"`
	SongID    string    `json:"songId"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the link's expiry has passed at the given time.
// Links with a zero expiry never expire.
func (l *Link) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}

// Store persists share links.
type Store interface {
	Insert(link Link) error
	Get(id string) (*Link, error)
	Delete(id string) error
}
