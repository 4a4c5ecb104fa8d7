package library

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/infra/backend"
	"github.com/jikime/music-player-app-sub000/internal/session"
)

// Store keeps the user's library in sync with the backend. The shared
// catalog holds every song the player can address; mySongs, playlists,
// bookmarks and recent are per-user views on top of it.
type Store struct {
	catalog *catalog.Catalog
	backend Backend
	thumbs  Thumbnailer

	mu        sync.Mutex
	mySongs   []catalog.Song
	playlists []catalog.Playlist
	bookmarks []catalog.Bookmark
	recent    []catalog.Song
	loading   bool
	toggling  map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithThumbnailer sets the thumbnail deriver used when a song is added
// with embedded image data but no thumbnail URL.
func WithThumbnailer(t Thumbnailer) Option {
	return func(s *Store) {
		s.thumbs = t
	}
}

// NewStore creates a library store backed by the given catalog and backend.
func NewStore(cat *catalog.Catalog, be Backend, opts ...Option) *Store {
	s := &Store{
		catalog:  cat,
		backend:  be,
		toggling: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Loading reports whether an Initialize call is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

// Initialize loads the catalog and, when the context carries a session,
// the user's songs, playlists, bookmarks and recently-played list. The
// per-user fetches run concurrently and fail soft; only a failure to
// load the song catalog itself is returned.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	songs, err := s.backend.FetchSongs(ctx)
	if err != nil {
		return fmt.Errorf("loading song catalog: %w", err)
	}

	s.catalog.ReplaceAll(songs)

	sess := session.FromContext(ctx)

	var (
		wg        sync.WaitGroup
		mySongs   []catalog.Song
		playlists []catalog.Playlist
		bookmarks []catalog.Bookmark
		recent    []catalog.Song
	)

	if sess != nil {
		wg.Add(3)

		go func() {
			defer wg.Done()

			var err error
			if mySongs, err = s.backend.FetchUserSongs(ctx, sess.UserID); err != nil {
				log.Warn().Err(err).Msg("Failed to load user songs")
			}
		}()

		go func() {
			defer wg.Done()

			var err error
			if playlists, err = s.backend.FetchPlaylists(ctx, sess.UserID); err != nil {
				log.Warn().Err(err).Msg("Failed to load playlists")
			}
		}()

		go func() {
			defer wg.Done()

			var err error
			if bookmarks, err = s.backend.FetchBookmarks(ctx, sess.UserID); err != nil {
				log.Warn().Err(err).Msg("Failed to load bookmarks")
			}
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		userID := ""
		if sess != nil {
			userID = sess.UserID
		}

		var err error
		if recent, err = s.backend.FetchRecentlyPlayed(ctx, userID); err != nil {
			log.Warn().Err(err).Msg("Failed to load recently played")
		}
	}()

	wg.Wait()

	s.mu.Lock()
	s.mySongs = mySongs
	s.playlists = playlists
	s.bookmarks = bookmarks
	s.recent = recent
	s.mu.Unlock()

	log.Info().
		Int("songs", s.catalog.Len()).
		Int("playlists", len(playlists)).
		Int("bookmarks", len(bookmarks)).
		Bool("authenticated", sess != nil).
		Msg("Library initialized")

	return nil
}

// MySongs returns the songs owned by the current user.
func (s *Store) MySongs() []catalog.Song {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]catalog.Song(nil), s.mySongs...)
}

// Playlists returns the user's playlists.
func (s *Store) Playlists() []catalog.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]catalog.Playlist(nil), s.playlists...)
}

// Bookmarks returns the user's bookmarks.
func (s *Store) Bookmarks() []catalog.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]catalog.Bookmark(nil), s.bookmarks...)
}

// RecentlyPlayed returns the recently-played list loaded at Initialize.
func (s *Store) RecentlyPlayed() []catalog.Song {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]catalog.Song(nil), s.recent...)
}

// Playlist returns the local copy of a playlist, or nil.
func (s *Store) Playlist(id string) *catalog.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.playlists {
		if s.playlists[i].ID == id {
			p := s.playlists[i]
			p.SongIDs = append([]string(nil), s.playlists[i].SongIDs...)

			return &p
		}
	}

	return nil
}

// PlaylistSongIDs reports the song IDs of a playlist, in order.
func (s *Store) PlaylistSongIDs(id string) ([]string, bool) {
	p := s.Playlist(id)
	if p == nil {
		return nil, false
	}

	return p.SongIDs, true
}

func validateSongInput(in SongInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", backend.ErrValidation)
	}

	if strings.TrimSpace(in.Artist) == "" {
		return fmt.Errorf("%w: artist is required", backend.ErrValidation)
	}

	u, err := url.Parse(in.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute", backend.ErrValidation)
	}

	return nil
}

// AddSong validates the input, derives a thumbnail from embedded image
// data when none was supplied, persists the song and reconciles local
// state. Validation failures are reported before any network call.
func (s *Store) AddSong(ctx context.Context, in SongInput) (*catalog.Song, error) {
	if err := validateSongInput(in); err != nil {
		return nil, err
	}

	sess := session.FromContext(ctx)
	if sess == nil {
		return nil, fmt.Errorf("%w: sign in to add songs", backend.ErrUnauthorized)
	}

	if in.Thumbnail == "" && in.ImageData != "" && s.thumbs != nil {
		thumb, err := s.thumbs.ThumbnailDataURL(in.ImageData)
		if err != nil {
			log.Warn().Err(err).Str("title", in.Title).Msg("Thumbnail derivation failed")
		} else {
			in.Thumbnail = thumb
		}
	}

	song := catalog.Song{
		Title:     strings.TrimSpace(in.Title),
		Artist:    strings.TrimSpace(in.Artist),
		Album:     strings.TrimSpace(in.Album),
		URL:       in.URL,
		Thumbnail: in.Thumbnail,
		ImageData: in.ImageData,
		Duration:  in.Duration,
		OwnerID:   sess.UserID,
	}

	created, err := s.backend.CreateSong(ctx, song)
	if err != nil {
		return nil, err
	}

	s.catalog.Add(*created)

	s.mu.Lock()
	s.mySongs = append(s.mySongs, *created)
	s.mu.Unlock()

	log.Info().Str("songId", created.ID).Str("title", created.Title).Msg("Song added")

	return created, nil
}

// UpdateSong applies a partial update to a song and reconciles every
// local view that carries it.
func (s *Store) UpdateSong(ctx context.Context, id string, partial map[string]any) (*catalog.Song, error) {
	updated, err := s.backend.UpdateSong(ctx, id, partial)
	if err != nil {
		return nil, err
	}

	s.catalog.Update(*updated)

	s.mu.Lock()
	for i := range s.mySongs {
		if s.mySongs[i].ID == id {
			s.mySongs[i] = *updated
		}
	}
	for i := range s.recent {
		if s.recent[i].ID == id {
			s.recent[i] = *updated
		}
	}
	s.mu.Unlock()

	return updated, nil
}

// DeleteSong removes a song from the backend and splices it out of the
// catalog, the user's songs, every playlist, the bookmarks and the
// recently-played list.
func (s *Store) DeleteSong(ctx context.Context, id string) error {
	if err := s.backend.DeleteSong(ctx, id); err != nil {
		return err
	}

	s.catalog.Remove(id)

	s.mu.Lock()
	s.mySongs = lo.Filter(s.mySongs, func(sg catalog.Song, _ int) bool { return sg.ID != id })
	s.bookmarks = lo.Filter(s.bookmarks, func(b catalog.Bookmark, _ int) bool { return b.SongID != id })
	s.recent = lo.Filter(s.recent, func(sg catalog.Song, _ int) bool { return sg.ID != id })
	for i := range s.playlists {
		s.playlists[i].SongIDs = lo.Filter(s.playlists[i].SongIDs, func(sid string, _ int) bool { return sid != id })
	}
	s.mu.Unlock()

	log.Info().Str("songId", id).Msg("Song deleted")

	return nil
}

// refreshPlaylist refetches a playlist and replaces the local copy.
func (s *Store) refreshPlaylist(ctx context.Context, id string) error {
	fresh, err := s.backend.FetchPlaylist(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.playlists {
		if s.playlists[i].ID == id {
			s.playlists[i] = *fresh

			return nil
		}
	}

	s.playlists = append(s.playlists, *fresh)

	return nil
}

// AddSongToPlaylist persists the membership change and refetches the
// playlist so local order matches the backend's. A song the local copy
// already holds is rejected without a round trip; the backend enforces
// the same uniqueness on the rows it owns.
func (s *Store) AddSongToPlaylist(ctx context.Context, playlistID, songID string) error {
	if p := s.Playlist(playlistID); p != nil && p.Contains(songID) {
		return fmt.Errorf("song %s already in playlist %s: %w", songID, playlistID, backend.ErrConflict)
	}

	if err := s.backend.AddSongToPlaylist(ctx, playlistID, songID); err != nil {
		return err
	}

	return s.refreshPlaylist(ctx, playlistID)
}

// RemoveSongFromPlaylist persists the removal and refetches the playlist.
func (s *Store) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error {
	if err := s.backend.RemoveSongFromPlaylist(ctx, playlistID, songID); err != nil {
		return err
	}

	return s.refreshPlaylist(ctx, playlistID)
}

// AddMultipleSongsToPlaylist adds each song in turn, continuing past
// failures. The playlist is refetched once at the end; the first
// failure, if any, is returned.
func (s *Store) AddMultipleSongsToPlaylist(ctx context.Context, playlistID string, songIDs []string) error {
	var firstErr error

	for _, songID := range songIDs {
		if err := s.backend.AddSongToPlaylist(ctx, playlistID, songID); err != nil {
			log.Warn().Err(err).Str("playlistId", playlistID).Str("songId", songID).Msg("Failed to add song to playlist")

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := s.refreshPlaylist(ctx, playlistID); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// IsBookmarked reports whether the song is bookmarked locally.
func (s *Store) IsBookmarked(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.ContainsBy(s.bookmarks, func(b catalog.Bookmark) bool { return b.SongID == songID })
}

// beginToggle claims the per-song toggle gate, or fails if a toggle for
// the same song is still outstanding.
func (s *Store) beginToggle(songID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.toggling[songID]; busy {
		return ErrToggleInFlight
	}

	s.toggling[songID] = struct{}{}

	return nil
}

func (s *Store) endToggle(songID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.toggling, songID)
}

// AddBookmark bookmarks a song. A conflict means the backend already has
// the bookmark; local state is reconciled to match and the error still
// propagates so the caller can tell the toggle was a no-op.
func (s *Store) AddBookmark(ctx context.Context, songID string) error {
	sess := session.FromContext(ctx)
	if sess == nil {
		return fmt.Errorf("%w: sign in to bookmark songs", backend.ErrUnauthorized)
	}

	if err := s.beginToggle(songID); err != nil {
		return err
	}
	defer s.endToggle(songID)

	err := s.backend.CreateBookmark(ctx, sess.UserID, songID)
	if err != nil && !errors.Is(err, backend.ErrConflict) {
		return err
	}

	s.mu.Lock()
	if !lo.ContainsBy(s.bookmarks, func(b catalog.Bookmark) bool { return b.SongID == songID }) {
		s.bookmarks = append(s.bookmarks, catalog.Bookmark{UserID: sess.UserID, SongID: songID})
	}
	s.mu.Unlock()

	return err
}

// RemoveBookmark removes a bookmark. A not-found from the backend means
// it was already gone; local state is reconciled and the error propagates.
func (s *Store) RemoveBookmark(ctx context.Context, songID string) error {
	sess := session.FromContext(ctx)
	if sess == nil {
		return fmt.Errorf("%w: sign in to bookmark songs", backend.ErrUnauthorized)
	}

	if err := s.beginToggle(songID); err != nil {
		return err
	}
	defer s.endToggle(songID)

	err := s.backend.DeleteBookmark(ctx, sess.UserID, songID)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	s.bookmarks = lo.Filter(s.bookmarks, func(b catalog.Bookmark, _ int) bool { return b.SongID != songID })
	s.mu.Unlock()

	return err
}

// UpdatePlayCount persists a play-count bump and mirrors it locally.
// Called from the playback engine when a song starts.
func (s *Store) UpdatePlayCount(songID string) error {
	if err := s.backend.IncrementPlayCount(context.Background(), songID); err != nil {
		return err
	}

	s.catalog.IncrementPlayCount(songID)

	return nil
}

// RecordRecentlyPlayed notes a play in the user's history. Best effort;
// failures are logged, never surfaced.
func (s *Store) RecordRecentlyPlayed(ctx context.Context, songID string) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return
	}

	if err := s.backend.RecordRecentlyPlayed(ctx, sess.UserID, songID); err != nil {
		log.Warn().Err(err).Str("songId", songID).Msg("Failed to record recently played")
	}
}
