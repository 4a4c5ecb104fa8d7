package catalog

import "time"

// Playlist is an ordered, duplicate-free sequence of song ids owned by a
// user. Song order is authoritative on the backend: after a structural
// mutation the whole playlist is refetched rather than patched locally.
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	SongIDs     []string  `json:"songIds"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Contains reports whether the playlist already holds the song.
func (p *Playlist) Contains(songID string) bool {
	for _, id := range p.SongIDs {
		if id == songID {
			return true
		}
	}
	return false
}

// Bookmark marks a song saved by a user. The (UserID, SongID) pair is
// unique; a duplicate insert is a conflict, not a crash.
type Bookmark struct {
	UserID    string    `json:"userId"`
	SongID    string    `json:"songId"`
	CreatedAt time.Time `json:"createdAt"`
}
