// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/domain/media"
	"github.com/jikime/music-player-app-sub000/internal/domain/player"
)

// defaultDebounceWindow collapses bursts of engine changes into one push.
const defaultDebounceWindow = 50 * time.Millisecond

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	engine    *player.Engine
	songs     songLookup
	limiter   *ConnectionLimiter
	debouncer *PushDebouncer

	mediaMu sync.Mutex
	media   *media.Controller
	lastID  string

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

type songLookup interface {
	Get(id string) *catalog.Song
}

// NewServer creates a new Socket.io server driving the playback engine.
// maxExternal bounds concurrent non-localhost connections; 0 disables
// the limit.
func NewServer(engine *player.Engine, songs songLookup, maxExternal int) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:      server,
		engine:  engine,
		songs:   songs,
		clients: make(map[string]*socket.Socket),
	}

	if maxExternal > 0 {
		s.limiter = NewConnectionLimiter(maxExternal)
	}

	s.debouncer = NewPushDebouncer(defaultDebounceWindow, s.BroadcastState, s.BroadcastQueue)
	s.media = media.NewController(&embedBridge{s}, engine)

	s.setupHandlers()

	return s, nil
}

// HandleStateChange is wired as the engine's change callback. Every
// engine mutation funnels through here and fans out to clients. A song
// change additionally points the client embeds at the new media, and
// the play intent is mirrored so pause and resume reach the embeds too.
func (s *Server) HandleStateChange(st player.State) {
	if st.CurrentSong != nil {
		s.mediaMu.Lock()
		if st.CurrentSong.ID != s.lastID {
			s.lastID = st.CurrentSong.ID
			s.media.Load(st.CurrentSong.ID)
		}
		s.mediaMu.Unlock()
	}

	s.media.SetPlaying(st.IsPlaying)

	s.debouncer.TriggerState()
	s.debouncer.TriggerQueue()
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		if s.limiter != nil {
			remoteIP := clientIP(client)
			if evicted := s.limiter.Add(clientID, remoteIP); evicted != "" {
				s.disconnectClient(evicted)
			}
		}

		log.Info().Str("id", clientID).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
			s.pushQueue(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			if s.limiter != nil {
				s.limiter.Remove(clientID)
			}

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		// Player control events
		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("play", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("play")

			if id, ok := payloadString(args, "id"); ok {
				if song := s.songs.Get(id); song != nil {
					s.engine.PlaySong(song)
					return
				}
				log.Warn().Str("songId", id).Msg("Play requested for unknown song")
				return
			}

			s.engine.SetIsPlaying(true)
		})

		client.On("pause", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("pause")
			s.engine.SetIsPlaying(false)
		})

		client.On("toggle", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("toggle")
			s.engine.SetIsPlaying(!s.engine.State().IsPlaying)
		})

		client.On("next", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("next")
			s.engine.PlayNext()
		})

		client.On("prev", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("prev")
			s.engine.PlayPrevious()
		})

		client.On("seekTo", func(args ...any) {
			if pos, ok := payloadFloat(args, "value"); ok {
				log.Debug().Str("id", clientID).Float64("pos", pos).Msg("seekTo")
				s.engine.SetCurrentTime(pos)
				s.media.SeekTo(pos)
			}
		})

		client.On("volume", func(args ...any) {
			if vol, ok := payloadFloat(args, "value"); ok {
				log.Debug().Str("id", clientID).Float64("vol", vol).Msg("volume")
				s.engine.SetVolume(vol)
			}
		})

		client.On("random", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("random")
			s.engine.ToggleShuffle()
		})

		client.On("repeat", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("repeat")
			s.engine.ToggleRepeat()
		})

		// Queue events
		client.On("getQueue", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getQueue")
			s.pushQueue(client)
		})

		client.On("addToQueue", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("addToQueue")
			if id, ok := payloadString(args, "id"); ok {
				s.engine.AddToQueue(id)
			}
		})

		client.On("removeFromQueue", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("removeFromQueue")
			if id, ok := payloadString(args, "id"); ok {
				s.engine.RemoveFromQueue(id)
			}
		})

		// Playlist events
		client.On("playPlaylist", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("playPlaylist")
			if id, ok := payloadString(args, "id"); ok {
				start := 0
				if v, ok := payloadFloat(args, "startIndex"); ok {
					start = int(v)
				}
				s.engine.PlayPlaylist(id, start)
			}
		})

		// Media embed events reported back by the client
		client.On("mediaEvent", func(args ...any) {
			ev, ok := parseMediaEvent(args)
			if !ok {
				log.Debug().Str("id", clientID).Interface("data", args).Msg("Ignoring malformed media event")
				return
			}
			s.media.Handle(ev)
		})

		client.On("shufflePlaylist", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("shufflePlaylist")
			if id, ok := payloadString(args, "id"); ok {
				s.engine.ShufflePlaylist(id)
			}
		})
	})
}

// pushState sends current state to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit("pushState", s.engine.State())
}

// pushQueue sends the resolved queue to a client.
func (s *Server) pushQueue(client *socket.Socket) {
	client.Emit("pushQueue", s.resolveQueue())
}

// resolveQueue maps queued song ids to full songs, skipping entries
// that no longer exist in the catalog.
func (s *Server) resolveQueue() []catalog.Song {
	ids := s.engine.Queue()

	songs := make([]catalog.Song, 0, len(ids))
	for _, id := range ids {
		if song := s.songs.Get(id); song != nil {
			songs = append(songs, *song)
		}
	}

	return songs
}

// BroadcastState sends state to all connected clients.
func (s *Server) BroadcastState() {
	s.io.Emit("pushState", s.engine.State())
}

// BroadcastQueue sends the queue to all connected clients.
func (s *Server) BroadcastQueue() {
	s.io.Emit("pushQueue", s.resolveQueue())
}

func (s *Server) disconnectClient(clientID string) {
	s.mu.RLock()
	client := s.clients[clientID]
	s.mu.RUnlock()

	if client == nil {
		return
	}

	log.Info().Str("id", clientID).Msg("Evicting oldest external client")
	client.Disconnect(true)
}

func clientIP(client *socket.Socket) string {
	if hs := client.Handshake(); hs != nil {
		return hs.Address
	}
	return ""
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}

// payloadString extracts a string field from the first event argument.
func payloadString(args []any, key string) (string, bool) {
	m, ok := payloadMap(args)
	if !ok {
		return "", false
	}

	v, ok := m[key].(string)
	return v, ok
}

// payloadFloat extracts a numeric field from the first event argument.
func payloadFloat(args []any, key string) (float64, bool) {
	m, ok := payloadMap(args)
	if !ok {
		return 0, false
	}

	v, ok := m[key].(float64)
	return v, ok
}

func payloadMap(args []any) (map[string]interface{}, bool) {
	if len(args) == 0 {
		return nil, false
	}

	m, ok := args[0].(map[string]interface{})
	return m, ok
}
