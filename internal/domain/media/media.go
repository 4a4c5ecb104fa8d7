// Package media maps the embedded media player's event and error model
// onto the playback engine.
package media

import "fmt"

// Embed is the remote media surface the controller drives. Commands are
// fire-and-forget; outcomes arrive back as Events.
type Embed interface {
	Load(mediaID string)
	Play()
	Pause()
	SeekTo(seconds float64)
}

// EventType identifies an embed event.
type EventType int

const (
	// EventReady fires once the embed can accept commands.
	EventReady EventType = iota
	// EventTimeUpdate carries the current playback position.
	EventTimeUpdate
	// EventDurationKnown carries the media duration once known.
	EventDurationKnown
	// EventEnded fires when the current media finishes.
	EventEnded
	// EventError carries the embed's numeric error code.
	EventError
)

// Event is a single notification from the embed.
type Event struct {
	Type    EventType
	Seconds float64
	Code    int
}

// PlaybackError is an embed error translated to the engine's terms.
type PlaybackError struct {
	Code      int
	Message   string
	Permanent bool
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("media error %d: %s", e.Code, e.Message)
}

// MapErrorCode translates the embed's numeric error codes. Unknown codes
// are treated as permanent so the controller never retries blindly.
func MapErrorCode(code int) *PlaybackError {
	switch code {
	case 2:
		return &PlaybackError{Code: code, Message: "invalid media id", Permanent: true}
	case 5:
		return &PlaybackError{Code: code, Message: "playback failure", Permanent: false}
	case 100:
		return &PlaybackError{Code: code, Message: "media not found", Permanent: true}
	case 101, 150:
		return &PlaybackError{Code: code, Message: "media not embeddable", Permanent: true}
	default:
		return &PlaybackError{Code: code, Message: "unknown media error", Permanent: true}
	}
}
