// Package catalog holds the in-memory song collection the player reads from.
package catalog

import "time"

// Song is a single track in the catalog.
type Song struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album,omitempty"`
	Duration  float64   `json:"duration"` // seconds, may be 0 until resolved
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	ImageData string    `json:"imageData,omitempty"` // base64-encoded embedded image
	PlayCount int       `json:"playCount"`
	Liked     bool      `json:"liked"`
	Shared    bool      `json:"shared"`
	OwnerID   string    `json:"ownerId,omitempty"` // empty means public/catalog song
	CreatedAt time.Time `json:"createdAt"`
}

// IsPublic reports whether the song has no owner.
func (s *Song) IsPublic() bool {
	return s.OwnerID == ""
}
