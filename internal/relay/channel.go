package relay

import "context"

// FrameKind tells text frames from binary ones.
type FrameKind int

const (
	TextFrame FrameKind = iota + 1
	BinaryFrame
)

func (k FrameKind) String() string {
	switch k {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one whole inbound message.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Channel is the bidirectional framed transport a peer is bound to.
// Keepalive is the implementation's business, not the relay's.
//
// Receive is only ever called from the connection's own task. Send may be
// called concurrently by any number of broadcasting tasks and must preserve
// per-channel send order. The first Send happens with the registry locked,
// so Send should queue rather than write. Close is idempotent.
type Channel interface {
	// Receive blocks for the next frame. A deadline on ctx bounds the wait
	// and surfaces as ErrReceiveTimeout. Any error is terminal.
	Receive(ctx context.Context) (Frame, error)
	Send(ctx context.Context, payload []byte) error
	Close(code CloseCode, reason string) error
	Closed() bool
}
