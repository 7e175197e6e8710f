package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mossy-p/audio-relay/internal/relay"
	"github.com/mossy-p/audio-relay/internal/transport"
)

// WebSocketHandler upgrades /ws requests and hands each connection to the Hub.
type WebSocketHandler struct {
	ctx      context.Context
	hub      *relay.Hub
	upgrader websocket.Upgrader
	conn     transport.Options
	logger   *slog.Logger
}

// NewWebSocketHandler builds the /ws handler. Connections live until they
// close or ctx is cancelled, independent of the HTTP request.
func NewWebSocketHandler(ctx context.Context, hub *relay.Hub, conn transport.Options, logger *slog.Logger) *WebSocketHandler {
	conn.Logger = logger
	return &WebSocketHandler{
		ctx: ctx,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is handled by middleware
				return true
			},
		},
		conn:   conn,
		logger: logger,
	}
}

// Handle blocks for the lifetime of the connection.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Warn("ws.upgrade", "remote", c.ClientIP(), "err", err)
		return
	}

	conn := transport.NewConn(ws, h.conn)
	h.logger.Debug("ws.connected", "remote", conn.RemoteAddr().String())
	h.hub.Serve(h.ctx, conn)
}
