package share

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/infra/backend"
	"github.com/jikime/music-player-app-sub000/internal/session"
)

const (
	idLength   = 12
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// maxIDAttempts bounds retries when a generated id collides.
	maxIDAttempts = 3
)

// SongGetter looks up a song by id. Satisfied by *catalog.Catalog.
type SongGetter interface {
	Get(id string) *catalog.Song
}

// Service creates and resolves share links.
type Service struct {
	store   Store
	songs   SongGetter
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the lifetime of newly created links. Zero means links
// never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a share service. baseURL is the public frontend
// origin that share URLs are built against.
func NewService(store Store, songs SongGetter, baseURL string, opts ...Option) *Service {
	s := &Service{
		store:   store,
		songs:   songs,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// URL returns the public URL for a link id.
func (s *Service) URL(id string) string {
	return s.baseURL + "/share/" + id
}

// Create mints a share link for a song. Private songs can only be
// shared by their owner.
func (s *Service) Create(ctx context.Context, songID string) (*Link, error) {
	song := s.songs.Get(songID)
	if song == nil {
		return nil, fmt.Errorf("%w: song %s", backend.ErrNotFound, songID)
	}

	if !song.IsPublic() {
		sess := session.FromContext(ctx)
		if sess == nil || sess.UserID != song.OwnerID {
			return nil, fmt.Errorf("%w: song is private", backend.ErrForbidden)
		}
	}

	now := s.now()

	link := Link{
		SongID:    songID,
		OwnerID:   song.OwnerID,
		CreatedAt: now,
	}
	if s.ttl > 0 {
		link.ExpiresAt = now.Add(s.ttl)
	}

	for attempt := 1; ; attempt++ {
		id, err := newID()
		if err != nil {
			return nil, fmt.Errorf("generating share id: %w", err)
		}

		link.ID = id

		err = s.store.Insert(link)
		if err == nil {
			break
		}

		if !errors.Is(err, ErrIDTaken) || attempt >= maxIDAttempts {
			return nil, fmt.Errorf("storing share link: %w", err)
		}

		log.Warn().Str("shareId", id).Int("attempt", attempt).Msg("Share id collision, retrying")
	}

	log.Info().Str("shareId", link.ID).Str("songId", songID).Msg("Share link created")

	return &link, nil
}

// Resolve looks up a link and returns it with its song. Expired links
// return ErrGone and are removed. Private songs resolve only for a
// session matching the owner.
func (s *Service) Resolve(ctx context.Context, id string) (*Link, *catalog.Song, error) {
	link, err := s.store.Get(id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading share link: %w", err)
	}

	if link == nil {
		return nil, nil, fmt.Errorf("%w: share %s", backend.ErrNotFound, id)
	}

	if link.Expired(s.now()) {
		if err := s.store.Delete(id); err != nil {
			log.Warn().Err(err).Str("shareId", id).Msg("Failed to delete expired share link")
		}

		return nil, nil, fmt.Errorf("%w: share %s", ErrGone, id)
	}

	song := s.songs.Get(link.SongID)
	if song == nil {
		return nil, nil, fmt.Errorf("%w: song %s", backend.ErrNotFound, link.SongID)
	}

	if !song.IsPublic() {
		sess := session.FromContext(ctx)
		if sess == nil || sess.UserID != song.OwnerID {
			return nil, nil, fmt.Errorf("%w: song is private", backend.ErrForbidden)
		}
	}

	return link, song, nil
}

func newID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}

	return string(buf), nil
}
