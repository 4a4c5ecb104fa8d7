// Package player implements the playback and queue state machine.
package player

import "github.com/jikime/music-player-app-sub000/internal/domain/catalog"

// RepeatMode is the repeat policy applied when advancing past the current song.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the wire name of the mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// Next cycles none -> one -> all -> none.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatOne
	case RepeatOne:
		return RepeatAll
	default:
		return RepeatOff
	}
}

// State is an immutable snapshot of the engine, pushed to transports.
type State struct {
	CurrentSong     *catalog.Song `json:"currentSong"`
	IsPlaying       bool          `json:"isPlaying"`
	Volume          float64       `json:"volume"`
	CurrentTime     float64       `json:"currentTime"`
	Duration        float64       `json:"duration"`
	Shuffle         bool          `json:"shuffle"`
	Repeat          string        `json:"repeat"`
	Queue           []string      `json:"queue"`
	History         []string      `json:"history"`
	CurrentPlaylist string        `json:"currentPlaylist,omitempty"`
	PlaylistQueue   []string      `json:"playlistQueue"`
}
