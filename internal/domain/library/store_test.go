package library_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/domain/library"
	"github.com/jikime/music-player-app-sub000/internal/infra/backend"
	"github.com/jikime/music-player-app-sub000/internal/session"
)

type fakeBackend struct {
	mu sync.Mutex

	songs     []catalog.Song
	userSongs []catalog.Song
	playlists map[string]catalog.Playlist
	bookmarks map[string]bool
	recent    []catalog.Song

	createSongCalls     int32
	createBookmarkCalls int32
	addToPlaylistCalls  int32
	addToPlaylistErrs   map[string]error
	bookmarkErr         error
	bookmarkHold        chan struct{}

	nextID int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		playlists:         make(map[string]catalog.Playlist),
		bookmarks:         make(map[string]bool),
		addToPlaylistErrs: make(map[string]error),
	}
}

func (f *fakeBackend) FetchSongs(ctx context.Context) ([]catalog.Song, error) {
	return append([]catalog.Song(nil), f.songs...), nil
}

func (f *fakeBackend) FetchUserSongs(ctx context.Context, userID string) ([]catalog.Song, error) {
	return append([]catalog.Song(nil), f.userSongs...), nil
}

func (f *fakeBackend) CreateSong(ctx context.Context, song catalog.Song) (*catalog.Song, error) {
	atomic.AddInt32(&f.createSongCalls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	song.ID = fmt.Sprintf("song-%d", f.nextID)
	f.songs = append(f.songs, song)

	return &song, nil
}

func (f *fakeBackend) UpdateSong(ctx context.Context, id string, partial map[string]any) (*catalog.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.songs {
		if f.songs[i].ID == id {
			if title, ok := partial["title"].(string); ok {
				f.songs[i].Title = title
			}

			song := f.songs[i]

			return &song, nil
		}
	}

	return nil, backend.ErrNotFound
}

func (f *fakeBackend) DeleteSong(ctx context.Context, id string) error {
	return nil
}

func (f *fakeBackend) IncrementPlayCount(ctx context.Context, songID string) error {
	return nil
}

func (f *fakeBackend) FetchPlaylists(ctx context.Context, userID string) ([]catalog.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]catalog.Playlist, 0, len(f.playlists))
	for _, p := range f.playlists {
		out = append(out, p)
	}

	return out, nil
}

func (f *fakeBackend) FetchPlaylist(ctx context.Context, id string) (*catalog.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.playlists[id]
	if !ok {
		return nil, backend.ErrNotFound
	}

	return &p, nil
}

func (f *fakeBackend) AddSongToPlaylist(ctx context.Context, playlistID, songID string) error {
	atomic.AddInt32(&f.addToPlaylistCalls, 1)

	if err := f.addToPlaylistErrs[songID]; err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.playlists[playlistID]
	p.SongIDs = append(p.SongIDs, songID)
	f.playlists[playlistID] = p

	return nil
}

func (f *fakeBackend) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.playlists[playlistID]

	kept := p.SongIDs[:0]
	for _, id := range p.SongIDs {
		if id != songID {
			kept = append(kept, id)
		}
	}

	p.SongIDs = kept
	f.playlists[playlistID] = p

	return nil
}

func (f *fakeBackend) FetchBookmarks(ctx context.Context, userID string) ([]catalog.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []catalog.Bookmark
	for songID := range f.bookmarks {
		out = append(out, catalog.Bookmark{UserID: userID, SongID: songID})
	}

	return out, nil
}

func (f *fakeBackend) CreateBookmark(ctx context.Context, userID, songID string) error {
	atomic.AddInt32(&f.createBookmarkCalls, 1)

	if f.bookmarkHold != nil {
		<-f.bookmarkHold
	}

	if f.bookmarkErr != nil {
		return f.bookmarkErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bookmarks[songID] {
		return backend.ErrConflict
	}

	f.bookmarks[songID] = true

	return nil
}

func (f *fakeBackend) DeleteBookmark(ctx context.Context, userID, songID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.bookmarks[songID] {
		return backend.ErrNotFound
	}

	delete(f.bookmarks, songID)

	return nil
}

func (f *fakeBackend) FetchRecentlyPlayed(ctx context.Context, userID string) ([]catalog.Song, error) {
	return append([]catalog.Song(nil), f.recent...), nil
}

func (f *fakeBackend) RecordRecentlyPlayed(ctx context.Context, userID, songID string) error {
	return nil
}

func authedCtx(userID string) context.Context {
	return session.WithSession(context.Background(), &session.Session{UserID: userID})
}

func TestInitializeUnauthenticated(t *testing.T) {
	be := newFakeBackend()
	be.songs = []catalog.Song{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}}
	be.userSongs = []catalog.Song{{ID: "s1", Title: "One"}}
	be.recent = []catalog.Song{{ID: "s2", Title: "Two"}}

	cat := catalog.New()
	store := library.NewStore(cat, be)

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cat.Len() != 2 {
		t.Errorf("expected 2 catalog songs, got %d", cat.Len())
	}

	if len(store.MySongs()) != 0 {
		t.Errorf("expected no user songs without a session, got %d", len(store.MySongs()))
	}

	if len(store.RecentlyPlayed()) != 1 {
		t.Errorf("expected public recently played to load, got %d entries", len(store.RecentlyPlayed()))
	}
}

func TestInitializeAuthenticated(t *testing.T) {
	be := newFakeBackend()
	be.songs = []catalog.Song{{ID: "s1"}, {ID: "s2"}}
	be.userSongs = []catalog.Song{{ID: "s1"}}
	be.bookmarks["s2"] = true
	be.playlists["p1"] = catalog.Playlist{ID: "p1", Name: "Mix", SongIDs: []string{"s1", "s2"}}

	store := library.NewStore(catalog.New(), be)

	if err := store.Initialize(authedCtx("u1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.MySongs()) != 1 {
		t.Errorf("expected 1 user song, got %d", len(store.MySongs()))
	}

	if len(store.Playlists()) != 1 {
		t.Errorf("expected 1 playlist, got %d", len(store.Playlists()))
	}

	if !store.IsBookmarked("s2") {
		t.Error("expected s2 to be bookmarked after initialize")
	}
}

func TestAddSongValidatesBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		input library.SongInput
	}{
		{"missing title", library.SongInput{Artist: "A", URL: "https://example.com/a.mp3"}},
		{"missing artist", library.SongInput{Title: "T", URL: "https://example.com/a.mp3"}},
		{"relative url", library.SongInput{Title: "T", Artist: "A", URL: "/a.mp3"}},
		{"garbage url", library.SongInput{Title: "T", Artist: "A", URL: "://nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := newFakeBackend()
			store := library.NewStore(catalog.New(), be)

			_, err := store.AddSong(authedCtx("u1"), tt.input)
			if !errors.Is(err, backend.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}

			if n := atomic.LoadInt32(&be.createSongCalls); n != 0 {
				t.Errorf("expected no backend calls on validation failure, got %d", n)
			}
		})
	}
}

func TestAddSongRequiresSession(t *testing.T) {
	store := library.NewStore(catalog.New(), newFakeBackend())

	_, err := store.AddSong(context.Background(), library.SongInput{
		Title: "T", Artist: "A", URL: "https://example.com/a.mp3",
	})
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestAddSongUpdatesLocalState(t *testing.T) {
	be := newFakeBackend()
	cat := catalog.New()
	store := library.NewStore(cat, be)

	created, err := store.AddSong(authedCtx("u1"), library.SongInput{
		Title: "New Tune", Artist: "A", URL: "https://example.com/a.mp3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.OwnerID != "u1" {
		t.Errorf("expected owner u1, got %q", created.OwnerID)
	}

	if cat.Get(created.ID) == nil {
		t.Error("expected created song in the catalog")
	}

	if len(store.MySongs()) != 1 {
		t.Errorf("expected 1 user song, got %d", len(store.MySongs()))
	}
}

func TestDeleteSongSplicesEverywhere(t *testing.T) {
	be := newFakeBackend()
	be.songs = []catalog.Song{{ID: "s1"}, {ID: "s2"}}
	be.userSongs = []catalog.Song{{ID: "s1"}}
	be.bookmarks["s1"] = true
	be.recent = []catalog.Song{{ID: "s1"}, {ID: "s2"}}
	be.playlists["p1"] = catalog.Playlist{ID: "p1", SongIDs: []string{"s1", "s2"}}

	cat := catalog.New()
	store := library.NewStore(cat, be)

	ctx := authedCtx("u1")
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.DeleteSong(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cat.Get("s1") != nil {
		t.Error("expected s1 removed from catalog")
	}

	if len(store.MySongs()) != 0 {
		t.Errorf("expected s1 removed from user songs, got %d", len(store.MySongs()))
	}

	if store.IsBookmarked("s1") {
		t.Error("expected s1 bookmark removed")
	}

	if len(store.RecentlyPlayed()) != 1 {
		t.Errorf("expected s1 removed from recently played, got %d entries", len(store.RecentlyPlayed()))
	}

	p := store.Playlist("p1")
	if p == nil || len(p.SongIDs) != 1 || p.SongIDs[0] != "s2" {
		t.Errorf("expected s1 spliced out of playlist, got %+v", p)
	}
}

func TestBookmarkToggleRoundTrip(t *testing.T) {
	be := newFakeBackend()
	store := library.NewStore(catalog.New(), be)
	ctx := authedCtx("u1")

	if err := store.AddBookmark(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !store.IsBookmarked("s1") {
		t.Error("expected s1 bookmarked")
	}

	if err := store.RemoveBookmark(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.IsBookmarked("s1") {
		t.Error("expected s1 no longer bookmarked")
	}
}

func TestBookmarkConflictReconciles(t *testing.T) {
	be := newFakeBackend()
	be.bookmarks["s1"] = true

	store := library.NewStore(catalog.New(), be)

	err := store.AddBookmark(authedCtx("u1"), "s1")
	if !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	if !store.IsBookmarked("s1") {
		t.Error("expected local state reconciled to bookmarked")
	}
}

func TestConcurrentBookmarkToggleRejected(t *testing.T) {
	be := newFakeBackend()
	be.bookmarkHold = make(chan struct{})

	store := library.NewStore(catalog.New(), be)
	ctx := authedCtx("u1")

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- store.AddBookmark(ctx, "s1")
	}()

	// Wait until the first toggle is inside the backend call.
	for atomic.LoadInt32(&be.createBookmarkCalls) == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := store.AddBookmark(ctx, "s1"); !errors.Is(err, library.ErrToggleInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	close(be.bookmarkHold)

	if err := <-firstDone; err != nil {
		t.Fatalf("unexpected error from first toggle: %v", err)
	}

	if n := atomic.LoadInt32(&be.createBookmarkCalls); n != 1 {
		t.Errorf("expected exactly 1 backend bookmark call, got %d", n)
	}
}

func TestAddMultipleSongsToPlaylistBestEffort(t *testing.T) {
	be := newFakeBackend()
	be.playlists["p1"] = catalog.Playlist{ID: "p1"}
	be.addToPlaylistErrs["s2"] = backend.ErrConflict

	store := library.NewStore(catalog.New(), be)
	ctx := authedCtx("u1")

	err := store.AddMultipleSongsToPlaylist(ctx, "p1", []string{"s1", "s2", "s3"})
	if !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("expected first failure returned, got %v", err)
	}

	p := store.Playlist("p1")
	if p == nil {
		t.Fatal("expected playlist fetched into local state")
	}

	if len(p.SongIDs) != 2 {
		t.Errorf("expected the other songs added despite the failure, got %v", p.SongIDs)
	}
}

func TestPlaylistMembership(t *testing.T) {
	be := newFakeBackend()
	be.playlists["p1"] = catalog.Playlist{ID: "p1", SongIDs: []string{"s1"}}

	store := library.NewStore(catalog.New(), be)
	ctx := authedCtx("u1")

	if err := store.AddSongToPlaylist(ctx, "p1", "s2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, ok := store.PlaylistSongIDs("p1")
	if !ok || len(ids) != 2 {
		t.Fatalf("expected 2 songs in playlist, got %v", ids)
	}

	if err := store.RemoveSongFromPlaylist(ctx, "p1", "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, _ = store.PlaylistSongIDs("p1")
	if len(ids) != 1 || ids[0] != "s2" {
		t.Errorf("expected only s2 left, got %v", ids)
	}
}

func TestAddSongToPlaylistRejectsDuplicateLocally(t *testing.T) {
	be := newFakeBackend()
	be.playlists["p1"] = catalog.Playlist{ID: "p1", SongIDs: []string{"s1"}}

	store := library.NewStore(catalog.New(), be)
	ctx := authedCtx("u1")

	// First add pulls the playlist into local state.
	if err := store.AddSongToPlaylist(ctx, "p1", "s2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := atomic.LoadInt32(&be.addToPlaylistCalls)

	err := store.AddSongToPlaylist(ctx, "p1", "s2")
	if !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("expected conflict for duplicate add, got %v", err)
	}

	if got := atomic.LoadInt32(&be.addToPlaylistCalls); got != calls {
		t.Errorf("expected no backend call for duplicate add, got %d more", got-calls)
	}
}

func TestUpdatePlayCountMirrorsLocally(t *testing.T) {
	be := newFakeBackend()
	be.songs = []catalog.Song{{ID: "s1", PlayCount: 4}}

	cat := catalog.New()
	store := library.NewStore(cat, be)

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.UpdatePlayCount("s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cat.Get("s1").PlayCount; got != 5 {
		t.Errorf("expected play count 5, got %d", got)
	}
}
