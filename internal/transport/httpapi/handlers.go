package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jikime/music-player-app-sub000/internal/domain/library"
	"github.com/jikime/music-player-app-sub000/internal/domain/share"
	"github.com/jikime/music-player-app-sub000/internal/infra/backend"
	"github.com/jikime/music-player-app-sub000/internal/version"
)

func (a *API) getVersion(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, version.GetInfo())
}

func (a *API) getPlayerState(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, a.engine.State())
}

// --- Songs ---

func (a *API) listSongs(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, a.catalog.All())
}

func (a *API) searchSongs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	sendJSONResponse(w, http.StatusOK, a.catalog.Search(query))
}

func (a *API) trendingSongs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sendJSONResponse(w, http.StatusOK, a.catalog.Trending(limit))
}

func (a *API) getSong(w http.ResponseWriter, r *http.Request) {
	song := a.catalog.Get(chi.URLParam(r, "id"))
	if song == nil {
		sendErrorResponse(w, http.StatusNotFound, "Song not found")
		return
	}

	sendJSONResponse(w, http.StatusOK, song)
}

func (a *API) addSong(w http.ResponseWriter, r *http.Request) {
	var input library.SongInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	song, err := a.library.AddSong(r.Context(), input)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusCreated, song)
}

func (a *API) updateSong(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	song, err := a.library.UpdateSong(r.Context(), chi.URLParam(r, "id"), partial)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, song)
}

func (a *API) deleteSong(w http.ResponseWriter, r *http.Request) {
	if err := a.library.DeleteSong(r.Context(), chi.URLParam(r, "id")); err != nil {
		sendDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) recordPlayed(w http.ResponseWriter, r *http.Request) {
	a.library.RecordRecentlyPlayed(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// --- Playlists ---

func (a *API) listPlaylists(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, a.library.Playlists())
}

func (a *API) getPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist := a.library.Playlist(chi.URLParam(r, "id"))
	if playlist == nil {
		sendErrorResponse(w, http.StatusNotFound, "Playlist not found")
		return
	}

	sendJSONResponse(w, http.StatusOK, playlist)
}

func (a *API) addPlaylistSong(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SongID string `json:"songId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SongID == "" {
		sendErrorResponse(w, http.StatusBadRequest, "songId is required")
		return
	}

	if err := a.library.AddSongToPlaylist(r.Context(), chi.URLParam(r, "id"), body.SongID); err != nil {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, a.library.Playlist(chi.URLParam(r, "id")))
}

func (a *API) addPlaylistSongs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SongIDs []string `json:"songIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.SongIDs) == 0 {
		sendErrorResponse(w, http.StatusBadRequest, "songIds is required")
		return
	}

	playlistID := chi.URLParam(r, "id")

	err := a.library.AddMultipleSongsToPlaylist(r.Context(), playlistID, body.SongIDs)
	if err != nil {
		// Partial success still refreshed the playlist; report the failure.
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, a.library.Playlist(playlistID))
}

func (a *API) removePlaylistSong(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "id")

	if err := a.library.RemoveSongFromPlaylist(r.Context(), playlistID, chi.URLParam(r, "songID")); err != nil {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, a.library.Playlist(playlistID))
}

// --- Bookmarks ---

func (a *API) listBookmarks(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, a.library.Bookmarks())
}

func (a *API) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "songID")

	var err error
	if a.library.IsBookmarked(songID) {
		err = a.library.RemoveBookmark(r.Context(), songID)
	} else {
		err = a.library.AddBookmark(r.Context(), songID)
	}

	// Conflict and not-found mean the backend was already in the target
	// state; local state has been reconciled either way.
	if err != nil && !errors.Is(err, backend.ErrConflict) && !errors.Is(err, backend.ErrNotFound) {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, map[string]bool{"bookmarked": a.library.IsBookmarked(songID)})
}

// --- Recently played ---

func (a *API) listRecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, a.library.RecentlyPlayed())
}

// --- Shares ---

func (a *API) createShare(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SongID string `json:"songId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SongID == "" {
		sendErrorResponse(w, http.StatusBadRequest, "songId is required")
		return
	}

	link, err := a.shares.Create(r.Context(), body.SongID)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusCreated, map[string]any{
		"link": link,
		"url":  a.shares.URL(link.ID),
	})
}

func (a *API) resolveShare(w http.ResponseWriter, r *http.Request) {
	link, song, err := a.shares.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendDomainError(w, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, map[string]any{
		"link": link,
		"song": song,
	})
}

// --- Response helpers ---

func sendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	})
}

// sendDomainError maps domain errors onto HTTP statuses.
func sendDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, backend.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, backend.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, backend.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, backend.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, backend.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, share.ErrGone):
		status = http.StatusGone
	case errors.Is(err, library.ErrToggleInFlight):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}

	sendErrorResponse(w, status, err.Error())
}
