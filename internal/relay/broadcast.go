package relay

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mossy-p/audio-relay/internal/metrics"
)

// BroadcastResult counts what happened to one fan-out batch.
type BroadcastResult struct {
	Delivered int
	Failed    int
	Skipped   int // channels already closed at snapshot time
}

// Broadcast sends payload to every member of roomID except sender. Sends run
// concurrently, at most h.fanout at a time, and Broadcast returns when all of
// them have finished. A failed send is counted and otherwise ignored: there
// is no retry and no error reaches the sender.
func (h *Hub) Broadcast(ctx context.Context, roomID, sender string, payload []byte) BroadcastResult {
	var (
		res       BroadcastResult
		delivered atomic.Int64
		failed    atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(h.fanout)

	for _, m := range h.registry.Members(roomID) {
		if m.Peer == sender {
			continue
		}
		if m.Channel.Closed() {
			res.Skipped++
			continue
		}

		m := m // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
			defer cancel()

			if err := m.Channel.Send(sendCtx, payload); err != nil {
				failed.Add(1)
				metrics.Deliveries.WithLabelValues("failed").Inc()
				h.logger.Debug("relay.delivery_failed", "room", roomID, "peer", m.Peer, "err", err)
				return nil
			}
			delivered.Add(1)
			metrics.Deliveries.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	res.Delivered = int(delivered.Load())
	res.Failed = int(failed.Load())
	return res
}
