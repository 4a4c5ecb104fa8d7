package media

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultMaxRetries bounds reload attempts after a retryable error.
const DefaultMaxRetries = 2

// Player is the slice of the playback engine the controller drives.
type Player interface {
	PlayNext()
	SetCurrentTime(seconds float64)
	SetDuration(seconds float64)
	SetIsPlaying(playing bool)
}

// Controller consumes embed events and keeps the engine in step with
// what the embed is actually doing. Embed and player calls happen
// outside the lock so the engine's change callback can re-enter Load.
type Controller struct {
	embed      Embed
	player     Player
	maxRetries int

	mu        sync.Mutex
	currentID string
	retries   int
	playing   bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMaxRetries sets how many times a retryable error reloads the
// current media before giving up.
func WithMaxRetries(n int) ControllerOption {
	return func(c *Controller) {
		c.maxRetries = n
	}
}

// NewController creates a controller bridging the embed and the engine.
func NewController(embed Embed, player Player, opts ...ControllerOption) *Controller {
	c := &Controller{
		embed:      embed,
		player:     player,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Load points the embed at new media and resets the retry budget.
func (c *Controller) Load(mediaID string) {
	c.mu.Lock()
	c.currentID = mediaID
	c.retries = 0
	c.mu.Unlock()

	c.embed.Load(mediaID)
}

// SetPlaying mirrors the transport's play intent onto the embed. Only
// a change of intent reaches the embed.
func (c *Controller) SetPlaying(playing bool) {
	c.mu.Lock()
	changed := c.playing != playing
	c.playing = playing
	c.mu.Unlock()

	if !changed {
		return
	}

	if playing {
		c.embed.Play()
	} else {
		c.embed.Pause()
	}
}

// SeekTo forwards a position change to the embed.
func (c *Controller) SeekTo(seconds float64) {
	c.embed.SeekTo(seconds)
}

// Handle processes one embed event.
func (c *Controller) Handle(ev Event) {
	switch ev.Type {
	case EventReady:
		c.mu.Lock()
		playing := c.playing
		c.mu.Unlock()

		// A reloaded embed starts from scratch; only resume it when
		// the transport intent is still playing.
		if playing {
			c.embed.Play()
		}

	case EventTimeUpdate:
		c.player.SetCurrentTime(ev.Seconds)

	case EventDurationKnown:
		c.player.SetDuration(ev.Seconds)

	case EventEnded:
		c.player.PlayNext()

	case EventError:
		c.handleError(MapErrorCode(ev.Code))
	}
}

func (c *Controller) handleError(perr *PlaybackError) {
	c.mu.Lock()
	mediaID := c.currentID
	retry := !perr.Permanent && c.retries < c.maxRetries
	if retry {
		c.retries++
	}
	attempt := c.retries
	c.mu.Unlock()

	if retry {
		log.Warn().
			Int("code", perr.Code).
			Int("attempt", attempt).
			Str("mediaId", mediaID).
			Msg("Retrying media load after playback failure")

		c.embed.Load(mediaID)

		return
	}

	log.Error().
		Int("code", perr.Code).
		Str("mediaId", mediaID).
		Msg(perr.Message)

	// Skip unplayable media rather than stalling the queue.
	c.player.PlayNext()
}
