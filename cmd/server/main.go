package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/syncroom/internal/adapters/http"
	"github.com/dkeye/syncroom/internal/adapters/metadata"
	"github.com/dkeye/syncroom/internal/app"
	"github.com/dkeye/syncroom/internal/app/orch"
	"github.com/dkeye/syncroom/internal/config"
	"github.com/dkeye/syncroom/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}

	var cache metadata.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis_url")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			// the resolver treats cache errors as misses
			log.Warn().Err(err).Msg("redis unreachable, metadata cache degraded")
		}
		cache = metadata.NewRedisCache(client, "syncroom:meta:", cfg.Metadata.CacheTTL)
	}
	resolver := metadata.New(metadata.Config{
		SpotifyOEmbedURL: cfg.Metadata.SpotifyOEmbedURL,
		YouTubeOEmbedURL: cfg.Metadata.YouTubeOEmbedURL,
		YouTubeAPIURL:    cfg.Metadata.YouTubeAPIURL,
		YouTubeAPIKey:    cfg.Metadata.YouTubeAPIKey,
		Timeout:          cfg.Metadata.HTTPTimeout,
	}, cache)
	if !resolver.SearchEnabled() {
		log.Warn().Msg("metadata.youtube_api_key not set, song search disabled")
	}

	reg := app.NewRegistry()
	hub := app.NewHub(reg, app.NewRoomManager(), app.SimplePolicy{})
	coord := orch.New(hub, db, db, orch.Options{
		HistoryLimit:   cfg.Room.HistoryLimit,
		PersistTimeout: cfg.Room.PersistTimeout,
		IdleTTL:        cfg.Room.IdleTTL,
	})
	go coord.Run(ctx, cfg.Room.SweepInterval)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Hub:      hub,
		Rooms:    coord,
		Resolver: resolver,
		History:  db,
		Health:   db,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Syncroom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := coord.Drain(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending writes abandoned")
	}
	coord.Close()
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close store")
	}
	log.Info().Msg("Server exited gracefully")
}
