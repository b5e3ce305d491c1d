// Package main provides the headless replay tool for slidetrace: it rebuilds
// a session's viewport trajectory from the database and prints every frame.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	gormdb "github.com/thebtf/slidetrace/internal/db/gorm"
	"github.com/thebtf/slidetrace/internal/playback"
	"github.com/thebtf/slidetrace/internal/render"
	"github.com/thebtf/slidetrace/internal/replay"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	driver := flag.String("driver", "sqlite", "Database driver (sqlite or postgres)")
	dsn := flag.String("dsn", "slidetrace.db", "Database DSN")
	sessionID := flag.String("session", "", "Session ID to replay (required)")
	speed := flag.Float64("speed", 1, "Playback speed multiplier")
	width := flag.Float64("width", 1280, "Container width in device pixels")
	height := flag.Float64("height", 720, "Container height in device pixels")
	paths := flag.Bool("paths", false, "Print click paths instead of replaying")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if *sessionID == "" {
		log.Fatal().Msg("--session is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	store, err := gormdb.NewStore(gormdb.Config{
		Driver:   *driver,
		DSN:      *dsn,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	sessionStore := gormdb.NewSessionStore(store, 0)
	eventStore := gormdb.NewEventStore(store, sessionStore)
	slideStore := gormdb.NewSlideStore(store)

	session, err := sessionStore.GetByID(ctx, *sessionID)
	if err != nil {
		log.Fatal().Err(err).Str("sessionId", *sessionID).Msg("Session not found")
	}
	manifest, err := slideStore.Get(ctx, session.SlideID)
	if err != nil {
		log.Fatal().Err(err).Str("slideId", session.SlideID).Msg("Slide manifest not found")
	}
	events, err := eventStore.ListEvents(ctx, *sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load events")
	}
	if len(events) == 0 {
		log.Fatal().Str("sessionId", *sessionID).Msg("Session has no events")
	}

	enc := json.NewEncoder(os.Stdout)

	if *paths {
		if err := enc.Encode(replay.ClickPaths(events)); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode click paths")
		}
		return
	}

	surface := render.NewFake(manifest, *width, *height)
	engine, err := replay.NewEngine(events, manifest, surface)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build replay engine")
	}

	ctrl := playback.NewController(engine, playback.Config{})
	if err := ctrl.SetSpeed(*speed); err != nil {
		log.Fatal().Err(err).Msg("Unsupported speed")
	}
	ctrl.OnFrame = func(frame replay.Frame) {
		if err := enc.Encode(frame); err != nil {
			log.Error().Err(err).Msg("Failed to encode frame")
		}
	}

	log.Info().
		Str("sessionId", *sessionID).
		Str("slideId", session.SlideID).
		Int("events", len(events)).
		Float64("speed", *speed).
		Msg("Replaying session")

	if err := ctrl.Play(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}
}
