package relay

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/mossy-p/audio-relay/internal/models"
)

// Validator applies the per-message checks of the relay loop. Checks run in
// a fixed order and stop at the first failure.
type Validator struct {
	MaxMessageBytes int
	MaxAudioSamples int
}

// Check returns nil when f is an audio message from peer in roomID that may
// be forwarded verbatim, or one of the ErrDrop* values otherwise.
func (v Validator) Check(f Frame, roomID, peer string) error {
	if f.Kind != TextFrame {
		return ErrDropBinary
	}
	if len(f.Data) > v.MaxMessageBytes {
		return ErrDropTooLarge
	}

	fields, ok := decodeRecord(f.Data)
	if !ok {
		return ErrDropNotRecord
	}

	if typ, ok := stringField(fields, "type"); !ok || typ != string(models.MessageTypeAudio) {
		return ErrDropUnknownType
	}
	if r, ok := stringField(fields, "room"); !ok || r != roomID {
		return ErrDropRoomMismatch
	}
	if from, ok := stringField(fields, "from"); !ok || from != peer {
		return ErrDropSenderMismatch
	}

	samples, ok := intField(fields, "samples")
	if !ok || samples <= 0 || samples > int64(v.MaxAudioSamples) {
		return ErrDropInvalidSamples
	}

	pcm, ok := stringField(fields, "pcm")
	if !ok || len(pcm) > v.MaxMessageBytes/2 {
		return ErrDropInvalidPCM
	}
	return nil
}

// decodeRecord parses data as a JSON object. Arrays, scalars and invalid
// JSON are not records.
func decodeRecord(data []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, fields != nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// intField accepts integer JSON numbers only; 1.5, "10" and 1e3 are rejected.
func intField(fields map[string]json.RawMessage, key string) (int64, bool) {
	raw := bytes.TrimSpace(fields[key])
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	i, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}
