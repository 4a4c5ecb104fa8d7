package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/infra/gateway"
)

// Client exposes the four backend resource collections (songs, playlists,
// bookmarks, recently-played) as typed operations. Every call goes through
// the gateway, which handles caching, retries and invalidation.
type Client struct {
	gw *gateway.Gateway
}

// NewClient creates a backend client on top of the gateway.
func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// Cache resource keys. Writes declare the prefixes they invalidate.
const (
	keySongsAll  = "songs-all"
	keySong      = "song-"      // + song id
	keySongsUser = "songs-user-" // + user id
	keyPlaylist  = "playlist-"  // + playlist id or "user-" + user id
	keyBookmarks = "bookmarks-" // + user id
	keyRecent    = "recent-"    // + user id
)

// FetchSongs returns the public song collection.
func (c *Client) FetchSongs(ctx context.Context) ([]catalog.Song, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path: "/songs",
		Key:  keySongsAll,
	})
	if err != nil {
		return nil, classify(err)
	}
	var songs []catalog.Song
	if err := json.Unmarshal(resp.Body, &songs); err != nil {
		return nil, fmt.Errorf("decode songs: %w", err)
	}
	return songs, nil
}

// FetchUserSongs returns the songs owned by the given user.
func (c *Client) FetchUserSongs(ctx context.Context, userID string) ([]catalog.Song, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path: "/songs?owner=" + url.QueryEscape(userID),
		Key:  keySongsUser + userID,
	})
	if err != nil {
		return nil, classify(err)
	}
	var songs []catalog.Song
	if err := json.Unmarshal(resp.Body, &songs); err != nil {
		return nil, fmt.Errorf("decode user songs: %w", err)
	}
	return songs, nil
}

// CreateSong stores a new song and returns the backend's copy of it.
func (c *Client) CreateSong(ctx context.Context, song catalog.Song) (*catalog.Song, error) {
	body, err := json.Marshal(song)
	if err != nil {
		return nil, fmt.Errorf("encode song: %w", err)
	}
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/songs",
		Body:        body,
		Invalidates: []string{keySongsAll, keySongsUser + song.OwnerID},
	})
	if err != nil {
		return nil, classify(err)
	}
	var created catalog.Song
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("decode created song: %w", err)
	}
	return &created, nil
}

// UpdateSong applies a partial update to an owned song.
func (c *Client) UpdateSong(ctx context.Context, id string, partial map[string]any) (*catalog.Song, error) {
	body, err := json.Marshal(partial)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPut,
		Path:        "/songs/" + url.PathEscape(id),
		Body:        body,
		Invalidates: []string{keySong + id, keySongsAll, keySongsUser},
	})
	if err != nil {
		return nil, classify(err)
	}
	var updated catalog.Song
	if err := json.Unmarshal(resp.Body, &updated); err != nil {
		return nil, fmt.Errorf("decode updated song: %w", err)
	}
	return &updated, nil
}

// DeleteSong removes an owned song. The backend cascades to bookmarks and
// playlist entries referencing it.
func (c *Client) DeleteSong(ctx context.Context, id string) error {
	_, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   "/songs/" + url.PathEscape(id),
		Invalidates: []string{
			keySong + id, keySongsAll, keySongsUser, keyPlaylist, keyBookmarks,
		},
	})
	return classify(err)
}

// IncrementPlayCount bumps a song's play count. Callers treat this as best
// effort; the gateway still reports failures so they can be logged.
func (c *Client) IncrementPlayCount(ctx context.Context, songID string) error {
	_, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/songs/" + url.PathEscape(songID) + "/play",
		Invalidates: []string{keySong + songID, keySongsAll},
	})
	return classify(err)
}

// FetchPlaylists returns the playlists owned by the given user.
func (c *Client) FetchPlaylists(ctx context.Context, userID string) ([]catalog.Playlist, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path: "/playlists?owner=" + url.QueryEscape(userID),
		Key:  keyPlaylist + "user-" + userID,
	})
	if err != nil {
		return nil, classify(err)
	}
	var playlists []catalog.Playlist
	if err := json.Unmarshal(resp.Body, &playlists); err != nil {
		return nil, fmt.Errorf("decode playlists: %w", err)
	}
	return playlists, nil
}

// FetchPlaylist returns a single playlist with its authoritative song order.
func (c *Client) FetchPlaylist(ctx context.Context, id string) (*catalog.Playlist, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path: "/playlists/" + url.PathEscape(id),
		Key:  keyPlaylist + id,
	})
	if err != nil {
		return nil, classify(err)
	}
	var playlist catalog.Playlist
	if err := json.Unmarshal(resp.Body, &playlist); err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	return &playlist, nil
}

// AddSongToPlaylist appends a song; the backend computes the position as
// max(position)+1 and rejects duplicates with a conflict.
func (c *Client) AddSongToPlaylist(ctx context.Context, playlistID, songID string) error {
	body, err := json.Marshal(map[string]string{"songId": songID})
	if err != nil {
		return fmt.Errorf("encode playlist entry: %w", err)
	}
	_, err = c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/playlists/" + url.PathEscape(playlistID) + "/songs",
		Body:        body,
		Invalidates: []string{keyPlaylist + playlistID},
	})
	return classify(err)
}

// RemoveSongFromPlaylist removes a song from a playlist.
func (c *Client) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error {
	_, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodDelete,
		Path:        "/playlists/" + url.PathEscape(playlistID) + "/songs/" + url.PathEscape(songID),
		Invalidates: []string{keyPlaylist + playlistID},
	})
	return classify(err)
}

// FetchBookmarks returns the user's bookmarks.
func (c *Client) FetchBookmarks(ctx context.Context, userID string) ([]catalog.Bookmark, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path: "/bookmarks?user=" + url.QueryEscape(userID),
		Key:  keyBookmarks + userID,
	})
	if err != nil {
		return nil, classify(err)
	}
	var bookmarks []catalog.Bookmark
	if err := json.Unmarshal(resp.Body, &bookmarks); err != nil {
		return nil, fmt.Errorf("decode bookmarks: %w", err)
	}
	return bookmarks, nil
}

// CreateBookmark stores a (user, song) bookmark. Duplicates conflict.
func (c *Client) CreateBookmark(ctx context.Context, userID, songID string) error {
	body, err := json.Marshal(map[string]string{"userId": userID, "songId": songID})
	if err != nil {
		return fmt.Errorf("encode bookmark: %w", err)
	}
	_, err = c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/bookmarks",
		Body:        body,
		Invalidates: []string{keyBookmarks + userID},
	})
	return classify(err)
}

// DeleteBookmark removes a (user, song) bookmark.
func (c *Client) DeleteBookmark(ctx context.Context, userID, songID string) error {
	_, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodDelete,
		Path:        "/bookmarks/" + url.PathEscape(userID) + "/" + url.PathEscape(songID),
		Invalidates: []string{keyBookmarks + userID},
	})
	return classify(err)
}

// FetchRecentlyPlayed returns recently played songs, newest first. With an
// empty userID the global public list is returned.
func (c *Client) FetchRecentlyPlayed(ctx context.Context, userID string) ([]catalog.Song, error) {
	path, key := "/recently-played", keyRecent+"public"
	if userID != "" {
		path += "?user=" + url.QueryEscape(userID)
		key = keyRecent + userID
	}
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path: path,
		Key:  key,
	})
	if err != nil {
		return nil, classify(err)
	}
	var songs []catalog.Song
	if err := json.Unmarshal(resp.Body, &songs); err != nil {
		return nil, fmt.Errorf("decode recently played: %w", err)
	}
	return songs, nil
}

// RecordRecentlyPlayed appends to the user's recently played list.
func (c *Client) RecordRecentlyPlayed(ctx context.Context, userID, songID string) error {
	body, err := json.Marshal(map[string]string{"userId": userID, "songId": songID})
	if err != nil {
		return fmt.Errorf("encode recently played: %w", err)
	}
	_, err = c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/recently-played",
		Body:        body,
		Invalidates: []string{keyRecent + userID},
	})
	return classify(err)
}
