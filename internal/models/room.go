package models

// RoomSummary is one entry of the room listing
type RoomSummary struct {
	Room      string `json:"room"`
	PeerCount int    `json:"peerCount"`
	MaxPeers  int    `json:"maxPeers"`
}

// RoomInfo describes a live room and its members in join order
type RoomInfo struct {
	Room      string   `json:"room"`
	Peers     []string `json:"peers"`
	PeerCount int      `json:"peerCount"`
	MaxPeers  int      `json:"maxPeers"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}
