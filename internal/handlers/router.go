package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/mossy-p/audio-relay/config"
	"github.com/mossy-p/audio-relay/internal/metrics"
	"github.com/mossy-p/audio-relay/internal/middleware"
	"github.com/mossy-p/audio-relay/internal/models"
	"github.com/mossy-p/audio-relay/internal/relay"
	"github.com/mossy-p/audio-relay/internal/transport"
)

// NewRouter wires up all HTTP routes, middleware, and handlers. ctx bounds
// the lifetime of relay connections.
func NewRouter(ctx context.Context, cfg *config.Config, hub *relay.Hub, logger *slog.Logger) http.Handler {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status: "ok",
			Rooms:  hub.Registry().Len(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Relay endpoint. "/" is kept for clients that connect to the bare host.
	ws := NewWebSocketHandler(ctx, hub, transport.Options{
		ReadLimit:    cfg.Relay.ReadLimitBytes,
		PingInterval: cfg.Relay.PingInterval,
		PongWait:     cfg.Relay.PongWait,
		WriteWait:    cfg.Relay.WriteWait,
		SendBuffer:   cfg.Relay.SendBuffer,
	}, logger)
	origins := OriginFilter(cfg.AllowedOrigins)
	router.GET("/ws", origins, ws.Handle)
	router.GET("/", origins, ws.Handle)

	rooms := NewRoomsHandler(hub, logger)
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/rooms", rooms.ListRooms)
		apiGroup.GET("/rooms/:roomId", rooms.GetRoom)

		// Eviction needs an operator token; without a secret it is not exposed.
		if cfg.JWTSecret != "" {
			apiGroup.DELETE("/rooms/:roomId/peers/:peerId", middleware.JWTAuth(cfg.JWTSecret), rooms.EvictPeer)
		}
	}

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)
}
