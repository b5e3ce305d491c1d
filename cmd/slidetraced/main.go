// Package main provides the trace-capture service entry point for
// slidetrace.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/thebtf/slidetrace/internal/config"
	gormdb "github.com/thebtf/slidetrace/internal/db/gorm"
	"github.com/thebtf/slidetrace/internal/slides"
	"github.com/thebtf/slidetrace/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "slidetrace.yaml", "Config file path")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	store, err := gormdb.NewStore(gormdb.Config{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	registry := slides.NewRegistry(cfg.SlidesDir)
	if err := registry.LoadAll(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.SlidesDir).Msg("Slide registry unavailable, replay-only mode")
	}
	slideStore := gormdb.NewSlideStore(store)
	if err := registry.SyncToStore(ctx, slideStore); err != nil {
		log.Fatal().Err(err).Msg("Failed to mirror slide manifests")
	}

	watcher, err := slides.NewWatcher(registry, func() {
		if err := registry.SyncToStore(context.Background(), slideStore); err != nil {
			log.Warn().Err(err).Msg("Failed to re-mirror slide manifests")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Slides watcher unavailable")
	} else {
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start slides watcher")
		}
		defer watcher.Stop()
	}

	svc := worker.NewService(Version, cfg, store, registry)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})

	log.Info().Str("version", Version).Int("slides", registry.Len()).Msg("slidetraced started")
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Service exited with error")
	}
}
