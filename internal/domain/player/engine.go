package player

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
)

// DefaultVolume is the volume a fresh engine starts with.
const DefaultVolume = 0.7

// Source resolves song ids against the loaded catalog.
type Source interface {
	Get(id string) *catalog.Song
	All() []catalog.Song
}

// PlaylistSource resolves a playlist id to its ordered song-id sequence.
type PlaylistSource interface {
	PlaylistSongIDs(playlistID string) ([]string, bool)
}

// PlayCounter records that a song started playing. Calls are best effort:
// the engine dispatches them on their own goroutine and only logs failures.
type PlayCounter interface {
	UpdatePlayCount(songID string) error
}

// Engine is the playback/queue state machine. It lives for the whole
// session and is never persisted; a restart resets it.
type Engine struct {
	mu sync.Mutex

	source    Source
	playlists PlaylistSource
	counter   PlayCounter
	rng       *rand.Rand
	onChange  func(State)

	// skipStale makes PlayNext keep consuming the manual queue when the
	// head no longer resolves to a known song. Off by default, which
	// matches the original behavior of consuming the entry and doing
	// nothing.
	skipStale bool

	current     *catalog.Song
	isPlaying   bool
	volume      float64
	currentTime float64
	duration    float64

	shuffle bool
	repeat  RepeatMode

	queue   []string
	history []string

	currentPlaylist string
	playlistQueue   []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPlaylists sets the playlist resolver used by PlayPlaylist.
func WithPlaylists(p PlaylistSource) Option {
	return func(e *Engine) { e.playlists = p }
}

// WithPlayCounter sets the best-effort play-count recorder.
func WithPlayCounter(c PlayCounter) Option {
	return func(e *Engine) { e.counter = c }
}

// WithRand sets the random source used for shuffle selection.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSkipStaleQueueHead makes PlayNext skip unresolvable manual queue
// entries instead of silently consuming one and stopping.
func WithSkipStaleQueueHead(skip bool) Option {
	return func(e *Engine) { e.skipStale = skip }
}

// WithOnChange registers a callback invoked with a state snapshot after
// every transition. The callback runs outside the engine lock.
func WithOnChange(fn func(State)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithVolume sets the initial volume, clamped to [0,1].
func WithVolume(v float64) Option {
	return func(e *Engine) { e.volume = clampVolume(v) }
}

// NewEngine creates an engine with default state: no current song,
// volume 0.7, shuffle off, repeat none.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		volume: DefaultVolume,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns a snapshot of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// SetCurrentSong selects a song outside any playlist context. Passing nil
// stops playback entirely. Time is reset, playlist context is cleared, and
// the transport intent is left paused.
func (e *Engine) SetCurrentSong(song *catalog.Song) {
	e.selectManually(song, false)
}

// PlaySong is SetCurrentSong with the transport intent forced to playing.
func (e *Engine) PlaySong(song *catalog.Song) {
	e.selectManually(song, true)
}

func (e *Engine) selectManually(song *catalog.Song, forcePlay bool) {
	e.mu.Lock()
	e.current = song
	e.currentTime = 0
	e.currentPlaylist = ""
	e.playlistQueue = nil
	if song == nil {
		e.isPlaying = false
	} else if forcePlay {
		e.isPlaying = true
	}
	snap := e.snapshot()
	e.mu.Unlock()

	if song != nil {
		e.bumpPlayCount(song.ID)
	}
	e.notify(snap)
}

// SetIsPlaying toggles the transport intent without touching the current song.
func (e *Engine) SetIsPlaying(playing bool) {
	e.mu.Lock()
	e.isPlaying = playing
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// ToggleShuffle flips the shuffle flag.
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	e.shuffle = !e.shuffle
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// ToggleRepeat cycles none -> one -> all -> none.
func (e *Engine) ToggleRepeat() {
	e.mu.Lock()
	e.repeat = e.repeat.Next()
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// SetVolume sets the volume, clamped to [0,1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	e.volume = clampVolume(v)
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// SetCurrentTime updates the playback position in seconds.
func (e *Engine) SetCurrentTime(seconds float64) {
	e.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	e.currentTime = seconds
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// SetDuration updates the known duration of the current song in seconds.
func (e *Engine) SetDuration(seconds float64) {
	e.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	e.duration = seconds
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// PlayPlaylist starts playback from a playlist: the playlist's song-id
// sequence is snapshotted verbatim into the playlist queue, the manual
// queue is cleared, and the song at startIndex (or 0 when out of range)
// starts playing. No-op when the playlist is absent or empty.
func (e *Engine) PlayPlaylist(playlistID string, startIndex int) {
	e.startPlaylist(playlistID, startIndex, false)
}

// ShufflePlaylist is PlayPlaylist with a randomly permuted copy of the
// song-id sequence, the shuffle flag forced on, and playback starting at
// the first element of the permutation.
func (e *Engine) ShufflePlaylist(playlistID string) {
	e.startPlaylist(playlistID, 0, true)
}

func (e *Engine) startPlaylist(playlistID string, startIndex int, shuffled bool) {
	if e.playlists == nil {
		log.Warn().Str("playlist", playlistID).Msg("No playlist source configured")
		return
	}
	ids, ok := e.playlists.PlaylistSongIDs(playlistID)
	if !ok || len(ids) == 0 {
		log.Debug().Str("playlist", playlistID).Msg("Playlist absent or empty, not starting playback")
		return
	}

	e.mu.Lock()
	seq := make([]string, len(ids))
	copy(seq, ids)
	if shuffled {
		e.rng.Shuffle(len(seq), func(i, j int) {
			seq[i], seq[j] = seq[j], seq[i]
		})
		e.shuffle = true
		startIndex = 0
	}
	if startIndex < 0 || startIndex >= len(seq) {
		startIndex = 0
	}

	e.currentPlaylist = playlistID
	e.playlistQueue = seq
	e.queue = nil
	e.current = e.source.Get(seq[startIndex])
	e.currentTime = 0
	e.isPlaying = e.current != nil
	snap := e.snapshot()
	var startedID string
	if e.current != nil {
		startedID = e.current.ID
	}
	e.mu.Unlock()

	if startedID != "" {
		e.bumpPlayCount(startedID)
	}
	e.notify(snap)
}

// AddToQueue appends a song id to the manual play-next queue. Duplicates
// are allowed.
func (e *Engine) AddToQueue(songID string) {
	e.mu.Lock()
	e.queue = append(e.queue, songID)
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// RemoveFromQueue removes every queue entry with the given id.
func (e *Engine) RemoveFromQueue(songID string) {
	e.mu.Lock()
	kept := e.queue[:0]
	for _, id := range e.queue {
		if id != songID {
			kept = append(kept, id)
		}
	}
	e.queue = kept
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// Queue returns a copy of the manual queue.
func (e *Engine) Queue() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queue...)
}

// History returns a copy of the play history, oldest first.
func (e *Engine) History() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.history...)
}

// PlayNext advances to the next song. Policies are evaluated in strict
// priority order: manual queue, repeat-one, playlist context, then the
// shuffle/repeat-all library fallback; when none applies playback stops
// with the current song left in place.
func (e *Engine) PlayNext() {
	e.mu.Lock()
	var playedID string

	// 1. Manual queue, consumed FIFO and exactly once per entry.
	for len(e.queue) > 0 {
		id := e.queue[0]
		e.queue = e.queue[1:]
		song := e.source.Get(id)
		if song == nil {
			log.Debug().Str("song", id).Msg("Queue head no longer resolves to a song")
			if e.skipStale {
				continue
			}
			// The entry is consumed and nothing else happens.
			snap := e.snapshot()
			e.mu.Unlock()
			e.notify(snap)
			return
		}
		playedID = e.advanceTo(song)
		snap := e.snapshot()
		e.mu.Unlock()
		e.bumpPlayCount(playedID)
		e.notify(snap)
		return
	}

	// 2. Repeat one: replay in place, history and queues untouched.
	if e.repeat == RepeatOne && e.current != nil {
		e.currentTime = 0
		e.isPlaying = true
		snap := e.snapshot()
		e.mu.Unlock()
		e.notify(snap)
		return
	}

	// 3. Playlist context.
	if e.currentPlaylist != "" && len(e.playlistQueue) > 0 && e.current != nil {
		if e.shuffle {
			if next := e.pickOther(e.playlistQueue, e.current.ID); next != nil {
				playedID = e.advanceTo(next)
				snap := e.snapshot()
				e.mu.Unlock()
				e.bumpPlayCount(playedID)
				e.notify(snap)
				return
			}
			// Nothing else in the playlist; fall through to the
			// library fallback below.
		} else {
			idx := indexOf(e.playlistQueue, e.current.ID)
			if idx+1 < len(e.playlistQueue) {
				if next := e.source.Get(e.playlistQueue[idx+1]); next != nil {
					playedID = e.advanceTo(next)
				}
				snap := e.snapshot()
				e.mu.Unlock()
				if playedID != "" {
					e.bumpPlayCount(playedID)
				}
				e.notify(snap)
				return
			}
			if e.repeat == RepeatAll {
				if next := e.source.Get(e.playlistQueue[0]); next != nil {
					playedID = e.advanceTo(next)
				}
				snap := e.snapshot()
				e.mu.Unlock()
				if playedID != "" {
					e.bumpPlayCount(playedID)
				}
				e.notify(snap)
				return
			}
			log.Debug().Str("playlist", e.currentPlaylist).Msg("End of playlist")
			// Sequential exhaustion without repeat-all: the fallback
			// guard below finds neither shuffle nor repeat-all and
			// playback stops.
		}
	}

	// 4. Library fallback when shuffling or repeating all.
	if e.shuffle || e.repeat == RepeatAll {
		all := e.source.All()
		candidates := make([]*catalog.Song, 0, len(all))
		for i := range all {
			if e.current != nil && all[i].ID == e.current.ID {
				continue
			}
			candidates = append(candidates, &all[i])
		}
		if len(candidates) > 0 {
			next := candidates[e.rng.Intn(len(candidates))]
			playedID = e.advanceTo(next)
			snap := e.snapshot()
			e.mu.Unlock()
			e.bumpPlayCount(playedID)
			e.notify(snap)
			return
		}
	}

	// 5. Nothing to play.
	e.isPlaying = false
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// PlayPrevious pops the most recent history entry and makes it current.
// The song being left is not queued anywhere, the playing state is left
// alone, and the playlist context is untouched.
func (e *Engine) PlayPrevious() {
	e.mu.Lock()
	if len(e.history) == 0 {
		e.mu.Unlock()
		return
	}
	id := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]

	song := e.source.Get(id)
	if song == nil {
		log.Debug().Str("song", id).Msg("History entry no longer resolves to a song")
		e.mu.Unlock()
		return
	}
	e.current = song
	e.currentTime = 0
	snap := e.snapshot()
	e.mu.Unlock()
	e.notify(snap)
}

// advanceTo makes song current, pushing the previous current song onto
// history. Caller holds the lock. Returns the new song id.
func (e *Engine) advanceTo(song *catalog.Song) string {
	if e.current != nil {
		e.history = append(e.history, e.current.ID)
	}
	e.current = song
	e.currentTime = 0
	e.isPlaying = true
	return song.ID
}

// pickOther picks uniformly at random among the ids in seq other than
// exclude. Caller holds the lock.
func (e *Engine) pickOther(seq []string, exclude string) *catalog.Song {
	others := make([]string, 0, len(seq))
	for _, id := range seq {
		if id != exclude {
			others = append(others, id)
		}
	}
	for len(others) > 0 {
		i := e.rng.Intn(len(others))
		if song := e.source.Get(others[i]); song != nil {
			return song
		}
		others = append(others[:i], others[i+1:]...)
	}
	return nil
}

func (e *Engine) snapshot() State {
	var current *catalog.Song
	if e.current != nil {
		c := *e.current
		current = &c
	}
	return State{
		CurrentSong:     current,
		IsPlaying:       e.isPlaying,
		Volume:          e.volume,
		CurrentTime:     e.currentTime,
		Duration:        e.duration,
		Shuffle:         e.shuffle,
		Repeat:          e.repeat.String(),
		Queue:           append([]string(nil), e.queue...),
		History:         append([]string(nil), e.history...),
		CurrentPlaylist: e.currentPlaylist,
		PlaylistQueue:   append([]string(nil), e.playlistQueue...),
	}
}

func (e *Engine) notify(snap State) {
	if e.onChange != nil {
		e.onChange(snap)
	}
}

// bumpPlayCount dispatches a best-effort play-count update. Failures are
// logged and never reach the caller.
func (e *Engine) bumpPlayCount(songID string) {
	if e.counter == nil || songID == "" {
		return
	}
	go func() {
		if err := e.counter.UpdatePlayCount(songID); err != nil {
			log.Warn().Err(err).Str("song", songID).Msg("Play count update failed")
		}
	}()
}

func indexOf(seq []string, id string) int {
	for i, s := range seq {
		if s == id {
			return i
		}
	}
	return -1
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
