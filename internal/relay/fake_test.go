package relay

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeChannel is an in-memory Channel. Frames pushed with deliver are
// returned by Receive; everything sent is recorded.
type fakeChannel struct {
	inbound chan Frame
	done    chan struct{}

	mu        sync.Mutex
	sent      [][]byte
	closed    bool
	closeCode CloseCode
	sendErr   error
	sendDelay time.Duration
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		inbound: make(chan Frame, 16),
		done:    make(chan struct{}),
	}
}

func (f *fakeChannel) deliver(kind FrameKind, data string) {
	f.inbound <- Frame{Kind: kind, Data: []byte(data)}
}

func (f *fakeChannel) text(data string) { f.deliver(TextFrame, data) }

func (f *fakeChannel) Receive(ctx context.Context) (Frame, error) {
	select {
	case fr := <-f.inbound:
		return fr, nil
	case <-f.done:
		return Frame{}, ErrChannelClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Frame{}, ErrReceiveTimeout
		}
		return Frame{}, ErrChannelClosed
	}
}

func (f *fakeChannel) Send(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	delay, err, closed := f.sendDelay, f.sendErr, f.closed
	f.mu.Unlock()

	if closed {
		return ErrChannelClosed
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeChannel) Close(code CloseCode, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.closeCode = code
	close(f.done)
	return nil
}

func (f *fakeChannel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, b := range f.sent {
		out[i] = string(b)
	}
	return out
}

func (f *fakeChannel) code() CloseCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

func (f *fakeChannel) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}
