package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/domain/library"
	"github.com/jikime/music-player-app-sub000/internal/domain/player"
	"github.com/jikime/music-player-app-sub000/internal/domain/share"
	"github.com/jikime/music-player-app-sub000/internal/session"
	"github.com/jikime/music-player-app-sub000/internal/transport/httpapi"
)

const testSecret = "test-secret"

type stubBackend struct {
	mu        sync.Mutex
	bookmarks map[string]bool
	nextID    int
}

func newStubBackend() *stubBackend {
	return &stubBackend{bookmarks: make(map[string]bool)}
}

func (s *stubBackend) FetchSongs(ctx context.Context) ([]catalog.Song, error) { return nil, nil }
func (s *stubBackend) FetchUserSongs(ctx context.Context, userID string) ([]catalog.Song, error) {
	return nil, nil
}

func (s *stubBackend) CreateSong(ctx context.Context, song catalog.Song) (*catalog.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	song.ID = "new-song"

	return &song, nil
}

func (s *stubBackend) UpdateSong(ctx context.Context, id string, partial map[string]any) (*catalog.Song, error) {
	return &catalog.Song{ID: id}, nil
}
func (s *stubBackend) DeleteSong(ctx context.Context, id string) error          { return nil }
func (s *stubBackend) IncrementPlayCount(ctx context.Context, songID string) error { return nil }

func (s *stubBackend) FetchPlaylists(ctx context.Context, userID string) ([]catalog.Playlist, error) {
	return nil, nil
}

func (s *stubBackend) FetchPlaylist(ctx context.Context, id string) (*catalog.Playlist, error) {
	return &catalog.Playlist{ID: id}, nil
}
func (s *stubBackend) AddSongToPlaylist(ctx context.Context, playlistID, songID string) error {
	return nil
}
func (s *stubBackend) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID string) error {
	return nil
}

func (s *stubBackend) FetchBookmarks(ctx context.Context, userID string) ([]catalog.Bookmark, error) {
	return nil, nil
}

func (s *stubBackend) CreateBookmark(ctx context.Context, userID, songID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[songID] = true
	return nil
}

func (s *stubBackend) DeleteBookmark(ctx context.Context, userID, songID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookmarks, songID)
	return nil
}

func (s *stubBackend) FetchRecentlyPlayed(ctx context.Context, userID string) ([]catalog.Song, error) {
	return nil, nil
}
func (s *stubBackend) RecordRecentlyPlayed(ctx context.Context, userID, songID string) error {
	return nil
}

type memShareStore struct {
	mu    sync.Mutex
	links map[string]share.Link
}

func (m *memShareStore) Insert(link share.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = make(map[string]share.Link)
	}
	m.links[link.ID] = link
	return nil
}

func (m *memShareStore) Get(id string) (*share.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (m *memShareStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, id)
	return nil
}

func signToken(t *testing.T, userID string) string {
	t.Helper()

	claims := session.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	return token
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := catalog.New()
	cat.ReplaceAll([]catalog.Song{
		{ID: "s1", Title: "First Light", Artist: "Aurora", PlayCount: 5},
		{ID: "s2", Title: "Second Wind", Artist: "Breeze", PlayCount: 9},
	})

	lib := library.NewStore(cat, newStubBackend())
	engine := player.NewEngine(cat)
	shares := share.NewService(&memShareStore{}, cat, "https://app.example.com")
	sessions := session.NewManager(testSecret)

	api := httpapi.New(cat, lib, engine, shares, sessions)

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)

	return srv
}

func doRequest(t *testing.T, method, url, token string, body string) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/version", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var info map[string]any
	decodeBody(t, resp, &info)

	if info["name"] == "" {
		t.Error("expected version info to carry a name")
	}
}

func TestListAndSearchSongs(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/songs/", "", "")
	var songs []catalog.Song
	decodeBody(t, resp, &songs)

	if len(songs) != 2 {
		t.Errorf("expected 2 songs, got %d", len(songs))
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/songs/search?q=aurora", "", "")
	decodeBody(t, resp, &songs)

	if len(songs) != 1 || songs[0].ID != "s1" {
		t.Errorf("expected only s1 to match, got %v", songs)
	}
}

func TestTrendingOrder(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/songs/trending", "", "")

	var songs []catalog.Song
	decodeBody(t, resp, &songs)

	if len(songs) != 2 || songs[0].ID != "s2" {
		t.Errorf("expected s2 first by play count, got %v", songs)
	}
}

func TestGetSongNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/songs/nope", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPlayerStateFallback(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/player/state", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var state player.State
	decodeBody(t, resp, &state)

	if state.Volume != 0.7 {
		t.Errorf("expected default volume 0.7, got %v", state.Volume)
	}
}

func TestAddSongRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	body := `{"title":"T","artist":"A","url":"https://example.com/a.mp3"}`

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/songs/", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/songs/", signToken(t, "u1"), body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 with token, got %d", resp.StatusCode)
	}

	var song catalog.Song
	decodeBody(t, resp, &song)

	if song.OwnerID != "u1" {
		t.Errorf("expected owner u1, got %q", song.OwnerID)
	}
}

func TestAddSongValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/songs/", signToken(t, "u1"),
		`{"title":"","artist":"A","url":"https://example.com/a.mp3"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing title, got %d", resp.StatusCode)
	}
}

func TestBookmarkToggle(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, "u1")

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/bookmarks/s1", token, "")

	var result map[string]bool
	decodeBody(t, resp, &result)

	if !result["bookmarked"] {
		t.Error("expected bookmarked=true after first toggle")
	}

	resp = doRequest(t, http.MethodPut, srv.URL+"/api/v1/bookmarks/s1", token, "")
	decodeBody(t, resp, &result)

	if result["bookmarked"] {
		t.Error("expected bookmarked=false after second toggle")
	}
}

func TestShareCreateAndResolve(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/shares/", "", `{"songId":"s1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created struct {
		Link share.Link `json:"link"`
		URL  string     `json:"url"`
	}
	decodeBody(t, resp, &created)

	if !strings.Contains(created.URL, created.Link.ID) {
		t.Errorf("expected URL %q to contain link id %q", created.URL, created.Link.ID)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/shares/"+created.Link.ID, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var resolved struct {
		Song catalog.Song `json:"song"`
	}
	decodeBody(t, resp, &resolved)

	if resolved.Song.ID != "s1" {
		t.Errorf("expected song s1, got %q", resolved.Song.ID)
	}
}

func TestShareResolveUnknown(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/shares/unknown12345", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodOptions, srv.URL+"/api/v1/songs/", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", resp.StatusCode)
	}

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}
