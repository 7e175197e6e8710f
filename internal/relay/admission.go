package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mossy-p/audio-relay/internal/metrics"
	"github.com/mossy-p/audio-relay/internal/models"
)

// admit waits for the join frame and registers the peer. Every rejection
// closes ch with its own code before any registry state exists. On success
// the peer's joined confirmation is queued on ch.
func (h *Hub) admit(ctx context.Context, ch Channel, log *slog.Logger) (string, string, error) {
	joinCtx, cancel := context.WithTimeout(ctx, h.joinTimeout)
	defer cancel()

	f, err := ch.Receive(joinCtx)
	if err != nil {
		switch {
		case errors.Is(err, ErrFrameTooLarge):
			return "", "", h.reject(ch, log, CloseTooLarge, err)
		case ctx.Err() != nil:
			return "", "", err
		case errors.Is(err, ErrReceiveTimeout), errors.Is(err, context.DeadlineExceeded):
			return "", "", h.reject(ch, log, CloseTimeout, err)
		default:
			return "", "", err
		}
	}

	if f.Kind != TextFrame {
		return "", "", h.reject(ch, log, CloseUnsupportedFrame, fmt.Errorf("%s frame", f.Kind))
	}
	if len(f.Data) > h.validator.MaxMessageBytes {
		return "", "", h.reject(ch, log, CloseTooLarge, fmt.Errorf("%d bytes", len(f.Data)))
	}
	if !utf8.Valid(f.Data) || !json.Valid(f.Data) {
		return "", "", h.reject(ch, log, CloseInvalidEncoding, nil)
	}

	fields, ok := decodeRecord(f.Data)
	if !ok {
		return "", "", h.reject(ch, log, CloseProtocolViolation, errors.New("not an object"))
	}
	if typ, _ := stringField(fields, "type"); typ != string(models.MessageTypeJoin) {
		return "", "", h.reject(ch, log, CloseProtocolViolation, fmt.Errorf("type %q", typ))
	}

	roomID := strings.TrimSpace(identField(fields, "room"))
	peer := strings.TrimSpace(identField(fields, "peer"))
	if roomID == "" || peer == "" {
		return "", "", h.reject(ch, log, CloseMissingFields, nil)
	}

	// joined is queued before the peer becomes visible to broadcasts, so it
	// is always the first record the peer receives.
	members, err := h.registry.Admit(roomID, peer, ch, func(members []string) error {
		joined, err := json.Marshal(models.NewJoined(roomID, peer, members))
		if err != nil {
			return err
		}
		sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
		if err := ch.Send(sendCtx, joined); err != nil {
			return fmt.Errorf("send joined: %w", err)
		}
		if h.presence != nil {
			h.presence.push(presenceOp{add: true, room: roomID, peer: peer})
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrRoomFull):
		return "", "", h.reject(ch, log.With("room", roomID, "peer", peer), CloseRoomFull, err)
	case errors.Is(err, ErrPeerExists):
		return "", "", h.reject(ch, log.With("room", roomID, "peer", peer), ClosePeerExists, err)
	case err != nil:
		return "", "", err
	}

	log.Info("relay.join", "room", roomID, "peer", peer, "peers", len(members))
	return roomID, peer, nil
}

func (h *Hub) reject(ch Channel, log *slog.Logger, code CloseCode, cause error) error {
	metrics.AdmissionRejections.WithLabelValues(string(code)).Inc()
	log.Info("relay.reject", "code", string(code), "err", cause)
	if err := ch.Close(code, string(code)); err != nil {
		log.Debug("relay.reject_close", "err", err)
	}
	return &RejectError{Code: code, Err: cause}
}

// identField reads a room or peer id. Strings are taken as-is and numbers
// by their literal text; anything else counts as missing.
func identField(fields map[string]json.RawMessage, key string) string {
	if s, ok := stringField(fields, key); ok {
		return s
	}
	raw := bytes.TrimSpace(fields[key])
	if len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return string(raw)
	}
	return ""
}
