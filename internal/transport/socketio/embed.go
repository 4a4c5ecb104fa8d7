package socketio

import (
	"github.com/jikime/music-player-app-sub000/internal/domain/media"
)

// embedBridge implements media.Embed over the socket transport. The
// media player itself runs inside the connected clients; commands are
// broadcast and every client applies them to its local embed.
type embedBridge struct {
	s *Server
}

func (b *embedBridge) Load(mediaID string) {
	b.s.io.Emit("loadMedia", map[string]interface{}{"id": mediaID})
}

func (b *embedBridge) Play() {
	b.s.io.Emit("playMedia")
}

func (b *embedBridge) Pause() {
	b.s.io.Emit("pauseMedia")
}

func (b *embedBridge) SeekTo(seconds float64) {
	b.s.io.Emit("seekMedia", map[string]interface{}{"value": seconds})
}

// parseMediaEvent maps a mediaEvent payload to a media.Event. Unknown
// type strings are dropped.
func parseMediaEvent(args []any) (media.Event, bool) {
	kind, ok := payloadString(args, "type")
	if !ok {
		return media.Event{}, false
	}

	ev := media.Event{}
	if v, ok := payloadFloat(args, "value"); ok {
		ev.Seconds = v
	}
	if v, ok := payloadFloat(args, "code"); ok {
		ev.Code = int(v)
	}

	switch kind {
	case "ready":
		ev.Type = media.EventReady
	case "timeupdate":
		ev.Type = media.EventTimeUpdate
	case "duration":
		ev.Type = media.EventDurationKnown
	case "ended":
		ev.Type = media.EventEnded
	case "error":
		ev.Type = media.EventError
	default:
		return media.Event{}, false
	}

	return ev, true
}
