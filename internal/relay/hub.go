package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mossy-p/audio-relay/internal/metrics"
)

const (
	defaultJoinTimeout       = 10 * time.Second
	defaultSendTimeout       = 2 * time.Second
	defaultFanoutConcurrency = 16
)

// HubOptions configures a Hub instance.
type HubOptions struct {
	Registry          *Registry
	Presence          Presence
	Logger            *slog.Logger
	MaxMessageBytes   int
	MaxAudioSamples   int
	JoinTimeout       time.Duration
	SendTimeout       time.Duration
	FanoutConcurrency int
}

// Hub runs one lifecycle per connection: admission, relay loop, teardown.
// Connections share nothing but the Registry.
type Hub struct {
	registry    *Registry
	presence    *presenceQueue // nil without a Presence
	logger      *slog.Logger
	validator   Validator
	joinTimeout time.Duration
	sendTimeout time.Duration
	fanout      int

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewHub builds a Hub from opts, filling in defaults for zero values.
func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		registry:    opts.Registry,
		logger:      opts.Logger,
		joinTimeout: opts.JoinTimeout,
		sendTimeout: opts.SendTimeout,
		fanout:      opts.FanoutConcurrency,
		validator: Validator{
			MaxMessageBytes: opts.MaxMessageBytes,
			MaxAudioSamples: opts.MaxAudioSamples,
		},
	}
	if h.registry == nil {
		h.registry = NewRegistry(64)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.joinTimeout <= 0 {
		h.joinTimeout = defaultJoinTimeout
	}
	if h.sendTimeout <= 0 {
		h.sendTimeout = defaultSendTimeout
	}
	if h.fanout <= 0 {
		h.fanout = defaultFanoutConcurrency
	}
	if h.validator.MaxMessageBytes <= 0 {
		h.validator.MaxMessageBytes = 512 * 1024
	}
	if h.validator.MaxAudioSamples <= 0 {
		h.validator.MaxAudioSamples = 48000 * 2
	}
	if opts.Presence != nil {
		h.presence = newPresenceQueue(opts.Presence, h.logger)
	}
	return h
}

// Registry exposes the room registry for inspection.
func (h *Hub) Registry() *Registry { return h.registry }

// Serve drives ch through admission and the relay loop and returns once the
// connection is finished. The peer, if admitted, is unregistered exactly once
// on every exit path, and ch is closed before Serve returns. Cancelling ctx
// ends the connection with CloseGoingAway, as does calling Serve after Wait.
func (h *Hub) Serve(ctx context.Context, ch Channel) {
	if !h.track() {
		_ = ch.Close(CloseGoingAway, string(CloseGoingAway))
		return
	}
	defer h.wg.Done()

	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	log := h.logger.With("conn", uuid.NewString())

	defer func() {
		code := CloseNormal
		if ctx.Err() != nil {
			code = CloseGoingAway
		}
		_ = ch.Close(code, string(code))
	}()

	roomID, peer, err := h.admit(ctx, ch, log)
	if err != nil {
		var rej *RejectError
		if !errors.As(err, &rej) {
			log.Debug("relay.admission_aborted", "err", err)
		}
		return
	}

	log = log.With("room", roomID, "peer", peer)
	defer h.leave(roomID, peer, log)

	h.relayLoop(ctx, ch, roomID, peer, log)
}

// track counts a new connection unless the hub is draining.
func (h *Hub) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

// Wait stops admitting connections and blocks until every Serve call has
// returned.
func (h *Hub) Wait() {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.wg.Wait()
}

// Close flushes pending presence updates. Call it after Wait.
func (h *Hub) Close(ctx context.Context) error {
	if h.presence == nil {
		return nil
	}
	return h.presence.close(ctx)
}

// Evict closes the channel bound to peer in roomID. The peer's own
// lifecycle then unregisters it.
func (h *Hub) Evict(roomID, peer string) error {
	ch, ok := h.registry.Lookup(roomID, peer)
	if !ok {
		return fmt.Errorf("evict %q from %q: %w", peer, roomID, ErrPeerNotFound)
	}
	h.logger.Info("relay.evict", "room", roomID, "peer", peer)
	return ch.Close(CloseEvicted, string(CloseEvicted))
}

func (h *Hub) relayLoop(ctx context.Context, ch Channel, roomID, peer string, log *slog.Logger) {
	for {
		f, err := ch.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, ErrChannelClosed):
				log.Debug("relay.closed", "err", err)
			case errors.Is(err, ErrFrameTooLarge):
				metrics.MessagesDropped.WithLabelValues(ErrDropTooLarge.Reason).Inc()
				log.Info("relay.frame_too_large", "err", err)
				_ = ch.Close(CloseTooLarge, string(CloseTooLarge))
			default:
				log.Warn("relay.receive_failed", "err", err)
			}
			return
		}

		if err := h.validator.Check(f, roomID, peer); err != nil {
			reason := "invalid"
			var drop *DropError
			if errors.As(err, &drop) {
				reason = drop.Reason
			}
			metrics.MessagesDropped.WithLabelValues(reason).Inc()
			log.Debug("relay.drop", "reason", reason, "bytes", len(f.Data))
			continue
		}

		metrics.MessagesRelayed.Inc()
		h.Broadcast(ctx, roomID, peer, f.Data)
	}
}

func (h *Hub) leave(roomID, peer string, log *slog.Logger) {
	removed := h.registry.Leave(roomID, peer, func() {
		if h.presence != nil {
			h.presence.push(presenceOp{room: roomID, peer: peer})
		}
	})
	if removed {
		log.Info("relay.leave")
	}
}
