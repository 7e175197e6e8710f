package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const presenceTimeout = 2 * time.Second

// Presence receives a copy of every membership change. It is informational
// only; the Registry stays the source of truth.
type Presence interface {
	AddPeer(ctx context.Context, room, peer string) error
	RemovePeer(ctx context.Context, room, peer string) error
}

type presenceOp struct {
	add  bool
	room string
	peer string
}

// presenceQueue applies membership changes to a Presence one at a time, in
// the order they were pushed. push never blocks, so it is safe to call with
// the registry locked; that lock is what orders the ops.
type presenceQueue struct {
	presence Presence
	logger   *slog.Logger

	mu      sync.Mutex
	pending []presenceOp
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newPresenceQueue(p Presence, logger *slog.Logger) *presenceQueue {
	q := &presenceQueue{
		presence: p,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *presenceQueue) push(op presenceOp) {
	q.mu.Lock()
	if !q.closed {
		q.pending = append(q.pending, op)
	}
	q.mu.Unlock()
	q.signal()
}

func (q *presenceQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *presenceQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		ops, closed := q.pending, q.closed
		q.pending = nil
		q.mu.Unlock()

		for _, op := range ops {
			q.apply(op)
		}
		if len(ops) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

func (q *presenceQueue) apply(op presenceOp) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	var err error
	if op.add {
		err = q.presence.AddPeer(ctx, op.room, op.peer)
	} else {
		err = q.presence.RemovePeer(ctx, op.room, op.peer)
	}
	if err != nil {
		q.logger.Warn("presence.sync", "add", op.add, "room", op.room, "peer", op.peer, "err", err)
	}
}

// close stops accepting ops and waits until the queued ones are applied or
// ctx ends.
func (q *presenceQueue) close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
