// Package httpapi exposes the REST surface: catalog reads, library
// mutations, share links and a state fallback for clients without a
// socket connection.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/domain/library"
	"github.com/jikime/music-player-app-sub000/internal/domain/player"
	"github.com/jikime/music-player-app-sub000/internal/domain/share"
	"github.com/jikime/music-player-app-sub000/internal/session"
)

// API bundles the handlers for the REST surface.
type API struct {
	catalog  *catalog.Catalog
	library  *library.Store
	engine   *player.Engine
	shares   *share.Service
	sessions *session.Manager
}

// New creates the API handler set.
func New(cat *catalog.Catalog, lib *library.Store, engine *player.Engine, shares *share.Service, sessions *session.Manager) *API {
	return &API{
		catalog:  cat,
		library:  lib,
		engine:   engine,
		shares:   shares,
		sessions: sessions,
	}
}

// Router builds the chi router with all routes mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)

	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
	r.Get("/health", healthHandler)
	r.Head("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", a.getVersion)

		r.With(a.sessions.Optional).Get("/player/state", a.getPlayerState)

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", a.listSongs)
			r.Get("/search", a.searchSongs)
			r.Get("/trending", a.trendingSongs)
			r.Get("/{id}", a.getSong)

			r.Group(func(r chi.Router) {
				r.Use(a.sessions.Require)
				r.Post("/", a.addSong)
				r.Patch("/{id}", a.updateSong)
				r.Delete("/{id}", a.deleteSong)
				r.Post("/{id}/played", a.recordPlayed)
			})
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Use(a.sessions.Require)
			r.Get("/", a.listPlaylists)
			r.Get("/{id}", a.getPlaylist)
			r.Post("/{id}/songs", a.addPlaylistSong)
			r.Post("/{id}/songs/bulk", a.addPlaylistSongs)
			r.Delete("/{id}/songs/{songID}", a.removePlaylistSong)
		})

		r.Route("/bookmarks", func(r chi.Router) {
			r.Use(a.sessions.Require)
			r.Get("/", a.listBookmarks)
			r.Put("/{songID}", a.toggleBookmark)
		})

		r.With(a.sessions.Optional).Get("/recently-played", a.listRecentlyPlayed)

		r.Route("/shares", func(r chi.Router) {
			r.Use(a.sessions.Optional)
			r.Post("/", a.createShare)
			r.Get("/{id}", a.resolveShare)
		})
	})

	return r
}
