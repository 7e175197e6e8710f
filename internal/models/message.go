package models

// MessageType is the "type" discriminator carried by every relay record
type MessageType string

const (
	MessageTypeJoin   MessageType = "join"
	MessageTypeJoined MessageType = "joined"
	MessageTypeAudio  MessageType = "audio"
)

// JoinedMessage confirms admission to the joining peer only
type JoinedMessage struct {
	Type  MessageType `json:"type"`
	Room  string      `json:"room"`
	Peer  string      `json:"peer"`
	Peers []string    `json:"peers"`
}

// NewJoined builds the admission confirmation for peer.
func NewJoined(room, peer string, peers []string) JoinedMessage {
	if peers == nil {
		peers = []string{}
	}
	return JoinedMessage{
		Type:  MessageTypeJoined,
		Room:  room,
		Peer:  peer,
		Peers: peers,
	}
}
