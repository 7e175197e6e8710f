package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/audio-relay/internal/middleware"
	"github.com/mossy-p/audio-relay/internal/models"
	"github.com/mossy-p/audio-relay/internal/relay"
)

// RoomsHandler serves read-only room inspection and operator eviction.
type RoomsHandler struct {
	hub    *relay.Hub
	logger *slog.Logger
}

func NewRoomsHandler(hub *relay.Hub, logger *slog.Logger) *RoomsHandler {
	return &RoomsHandler{hub: hub, logger: logger}
}

// ListRooms returns every live room with its member count
func (h *RoomsHandler) ListRooms(c *gin.Context) {
	reg := h.hub.Registry()
	counts := reg.Rooms()

	rooms := make([]models.RoomSummary, 0, len(counts))
	for _, id := range reg.RoomIDs() {
		n, ok := counts[id]
		if !ok {
			continue
		}
		rooms = append(rooms, models.RoomSummary{
			Room:      id,
			PeerCount: n,
			MaxPeers:  reg.MaxPeers(),
		})
	}

	c.JSON(http.StatusOK, rooms)
}

// GetRoom returns a room's members. Looking a room up never creates it.
func (h *RoomsHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	reg := h.hub.Registry()

	peers := reg.PeerIDs(roomID)
	if len(peers) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	c.JSON(http.StatusOK, models.RoomInfo{
		Room:      roomID,
		Peers:     peers,
		PeerCount: len(peers),
		MaxPeers:  reg.MaxPeers(),
	})
}

// EvictPeer closes a peer's connection (requires JWT)
func (h *RoomsHandler) EvictPeer(c *gin.Context) {
	operator, _ := c.Get(middleware.OperatorKey)
	roomID := c.Param("roomId")
	peerID := c.Param("peerId")

	if err := h.hub.Evict(roomID, peerID); err != nil {
		if errors.Is(err, relay.ErrPeerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Peer not found"})
			return
		}
		h.logger.Error("rooms.evict", "room", roomID, "peer", peerID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evict peer"})
		return
	}

	h.logger.Info("rooms.evicted", "room", roomID, "peer", peerID, "operator", operator)
	c.JSON(http.StatusOK, gin.H{"message": "Peer evicted"})
}
