package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/adapters/signal"
	"github.com/dkeye/syncroom/internal/app"
	"github.com/dkeye/syncroom/internal/app/orch"
	"github.com/dkeye/syncroom/internal/config"
	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

// Coordinator is what the HTTP layer needs from the room coordinator.
type Coordinator interface {
	signal.Coordinator
	Snapshot(ctx context.Context, id domain.RoomID) (orch.Snapshot, error)
	RoomCount() int
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Hub      *app.Hub
	Rooms    Coordinator
	Resolver core.Resolver
	History  core.HistoryStore
	// Health is pinged by /healthz; nil skips the check.
	Health Pinger
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(Metrics())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("SyncroomSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{deps: deps}

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
	}
	r.GET("/", h.root)
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/metadata", h.resolveMetadata)
	api.POST("/search", h.search)
	api.GET("/history", h.listHistory)
	api.POST("/history", h.appendHistory)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:roomId", h.roomState)

	ctrl := signal.NewSignalWSController(deps.Hub, deps.Rooms, signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		SendBuffer:   cfg.Room.SendBuffer,
		ChatRate:     cfg.Room.ChatRate,
		ChatInterval: cfg.Room.ChatInterval,
	})
	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
