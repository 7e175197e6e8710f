package relay

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull       = errors.New("room full")
	ErrPeerExists     = errors.New("peer id already in room")
	ErrPeerNotFound   = errors.New("peer not found")
	ErrChannelClosed  = errors.New("channel closed")
	ErrReceiveTimeout = errors.New("receive timed out")
	ErrFrameTooLarge  = errors.New("frame exceeds transport limit")
)

// CloseCode is the machine-readable reason a server closes a channel.
// The string is sent as the close reason; Status is the numeric code.
type CloseCode string

const (
	CloseUnsupportedFrame  CloseCode = "unsupported_frame_type"
	CloseTooLarge          CloseCode = "too_large"
	CloseInvalidEncoding   CloseCode = "invalid_encoding"
	CloseProtocolViolation CloseCode = "protocol_violation"
	CloseMissingFields     CloseCode = "missing_fields"
	CloseRoomFull          CloseCode = "room_full"
	CloseTimeout           CloseCode = "timeout"
	ClosePeerExists        CloseCode = "peer_exists"
	CloseEvicted           CloseCode = "evicted"
	CloseNormal            CloseCode = "normal"
	CloseGoingAway         CloseCode = "going_away"
)

// Status maps the code onto a WebSocket close status.
func (c CloseCode) Status() int {
	switch c {
	case CloseNormal:
		return 1000
	case CloseGoingAway:
		return 1001
	case CloseProtocolViolation:
		return 1002
	case CloseUnsupportedFrame:
		return 1003
	case CloseInvalidEncoding:
		return 1007
	case CloseMissingFields:
		return 1008
	case CloseTooLarge:
		return 1009
	case CloseRoomFull:
		return 4000
	case CloseTimeout:
		return 4001
	case ClosePeerExists:
		return 4002
	case CloseEvicted:
		return 4003
	default:
		return 1011
	}
}

// RejectError is an admission failure. The channel has already been
// closed with Code when it is returned.
type RejectError struct {
	Code CloseCode
	Err  error
}

func (e *RejectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("admission rejected: %s", e.Code)
	}
	return fmt.Sprintf("admission rejected: %s: %v", e.Code, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

// DropError is a mid-stream validation failure. The message is discarded
// and the connection stays open.
type DropError struct {
	Reason string
}

func (e *DropError) Error() string { return "message dropped: " + e.Reason }

var (
	ErrDropBinary         = &DropError{Reason: "binary_frame"}
	ErrDropTooLarge       = &DropError{Reason: "too_large"}
	ErrDropNotRecord      = &DropError{Reason: "not_a_record"}
	ErrDropUnknownType    = &DropError{Reason: "unknown_type"}
	ErrDropRoomMismatch   = &DropError{Reason: "room_mismatch"}
	ErrDropSenderMismatch = &DropError{Reason: "sender_mismatch"}
	ErrDropInvalidSamples = &DropError{Reason: "invalid_samples"}
	ErrDropInvalidPCM     = &DropError{Reason: "invalid_pcm"}
)
