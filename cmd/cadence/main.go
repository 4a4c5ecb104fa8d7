// Package main is the entry point for the Cadence music player backend.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jikime/music-player-app-sub000/internal/config"
	"github.com/jikime/music-player-app-sub000/internal/domain/artwork"
	"github.com/jikime/music-player-app-sub000/internal/domain/catalog"
	"github.com/jikime/music-player-app-sub000/internal/domain/library"
	"github.com/jikime/music-player-app-sub000/internal/domain/player"
	"github.com/jikime/music-player-app-sub000/internal/domain/share"
	"github.com/jikime/music-player-app-sub000/internal/infra/backend"
	"github.com/jikime/music-player-app-sub000/internal/infra/gateway"
	"github.com/jikime/music-player-app-sub000/internal/infra/sharedb"
	"github.com/jikime/music-player-app-sub000/internal/session"
	"github.com/jikime/music-player-app-sub000/internal/transport/httpapi"
	"github.com/jikime/music-player-app-sub000/internal/transport/socketio"
	"github.com/jikime/music-player-app-sub000/internal/version"
)

func main() {
	// Command line flags
	port := flag.String("port", "", "HTTP server port (overrides SERVER_PORT)")
	staticDir := flag.String("static", "", "Directory to serve static files from (optional)")
	maxExternal := flag.Int("max-external", 0, "Max concurrent non-localhost socket clients (0 = unlimited)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.ServerPort = *port
	}

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Music Player Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", cfg.ServerPort).
		Str("backend", cfg.BackendURL).
		Dur("cache_ttl", cfg.CacheTTL).
		Bool("api_key_set", cfg.BackendAPIKey != "").
		Msg("Configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Remote data gateway and backend client
	gw := gateway.New(cfg.BackendURL,
		gateway.WithAPIKey(cfg.BackendAPIKey),
		gateway.WithDefaultTTL(cfg.CacheTTL),
		gateway.WithMaxRetries(cfg.MaxRetries),
		gateway.WithRetryBaseDelay(cfg.RetryBaseDelay),
		gateway.WithRateLimit(cfg.RequestsPerSecond),
	)
	gw.StartSweeper(ctx, cfg.CacheSweepInterval)

	backendClient := backend.NewClient(gw)

	// Catalog and library
	cat := catalog.New()
	lib := library.NewStore(cat, backendClient,
		library.WithThumbnailer(artwork.NewThumbnailer(artwork.DefaultThumbSize)),
	)

	if err := lib.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial library load failed, starting with an empty catalog")
	}

	// Playback engine; the socket server is bound to engine changes
	// once both exist.
	var socketServer *socketio.Server

	engine := player.NewEngine(cat,
		player.WithPlaylists(lib),
		player.WithPlayCounter(lib),
		player.WithVolume(cfg.DefaultVolume),
		player.WithSkipStaleQueueHead(cfg.QueueSkipStale),
		player.WithOnChange(func(st player.State) {
			if socketServer != nil {
				socketServer.HandleStateChange(st)
			}
		}),
	)

	socketServer, err = socketio.NewServer(engine, cat, *maxExternal)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	// Share links
	shareDB := sharedb.NewDB(cfg.ShareDBPath)
	if err := shareDB.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open share database")
	}
	defer shareDB.Close()

	shareDAO := sharedb.NewDAO(shareDB)
	shares := share.NewService(shareDAO, cat, cfg.FrontendURL)

	startShareSweeper(ctx, shareDAO)

	// Sessions and REST surface
	sessions := session.NewManager(cfg.JWTSecret)
	api := httpapi.New(cat, lib, engine, shares, sessions)

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)
	mux.Handle("/", withStatic(api.Router(), *staticDir))

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+cfg.ServerPort).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// startShareSweeper periodically removes expired share links.
func startShareSweeper(ctx context.Context, dao *sharedb.DAO) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := dao.DeleteExpired(time.Now()); err != nil {
					log.Warn().Err(err).Msg("Share link sweep failed")
				}
			}
		}
	}()
}

// withStatic serves SPA static files alongside the API when a directory
// is configured. API routes always win; unknown paths fall back to
// index.html for client-side routing.
func withStatic(api http.Handler, staticDir string) http.Handler {
	if staticDir == "" {
		return api
	}

	log.Info().Str("dir", staticDir).Msg("Serving static files")

	fs := http.FileServer(http.Dir(staticDir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || len(r.URL.Path) >= 5 && r.URL.Path[:5] == "/api/" {
			api.ServeHTTP(w, r)
			return
		}

		path := staticDir + r.URL.Path
		if r.URL.Path == "/" {
			path = staticDir + "/index.html"
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, staticDir+"/index.html")
			return
		}

		fs.ServeHTTP(w, r)
	})
}
