// Package library is the single source of truth for the songs, playlists,
// bookmarks and recently-played list the player can see. Every mutator
// calls the backend first and only reconciles local state on success; on
// failure local state is left unchanged and the error propagates.
package library

import (
	"context"
	"errors"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
)

// ErrToggleInFlight is returned when a bookmark toggle for a song is
// already outstanding. The second toggle is rejected, not queued.
var ErrToggleInFlight = errors.New("bookmark toggle already in flight")

// Backend is the persistence collaborator, reached through the gateway.
type Backend interface {
	FetchSongs(ctx context.Context) ([]catalog.Song, error)
	FetchUserSongs(ctx context.Context, userID string) ([]catalog.Song, error)
	CreateSong(ctx context.Context, song catalog.Song) (*catalog.Song, error)
	UpdateSong(ctx context.Context, id string, partial map[string]any) (*catalog.Song, error)
	DeleteSong(ctx context.Context, id string) error
	IncrementPlayCount(ctx context.Context, songID string) error

	FetchPlaylists(ctx context.Context, userID string) ([]catalog.Playlist, error)
	FetchPlaylist(ctx context.Context, id string) (*catalog.Playlist, error)
	AddSongToPlaylist(ctx context.Context, playlistID, songID string) error
	RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error

	FetchBookmarks(ctx context.Context, userID string) ([]catalog.Bookmark, error)
	CreateBookmark(ctx context.Context, userID, songID string) error
	DeleteBookmark(ctx context.Context, userID, songID string) error

	FetchRecentlyPlayed(ctx context.Context, userID string) ([]catalog.Song, error)
	RecordRecentlyPlayed(ctx context.Context, userID, songID string) error
}

// Thumbnailer derives a displayable thumbnail from an embedded image.
type Thumbnailer interface {
	ThumbnailDataURL(imageData string) (string, error)
}

// SongInput is the payload for adding a song to the catalog.
type SongInput struct {
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Album     string  `json:"album,omitempty"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	ImageData string  `json:"imageData,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}
