package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mossy-p/audio-relay/internal/relay"
)

// maxDrain bounds how much of an oversized frame is read and discarded.
const maxDrain = 16 << 20

// Options tunes the keepalive and buffering of a Conn.
type Options struct {
	// ReadLimit is the hard frame limit. Larger frames fail Receive with
	// relay.ErrFrameTooLarge and leave closing to the caller.
	ReadLimit int64
	// PingInterval must be less than PongWait.
	PingInterval time.Duration
	// PongWait is how long a read may wait without hearing from the peer.
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	Logger     *slog.Logger
}

func (o *Options) defaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1024 * 1024
	}
	if o.PongWait <= 0 {
		o.PongWait = 40 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = (o.PongWait * 9) / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Conn adapts a gorilla websocket connection to relay.Channel. Outbound
// frames go through a buffered queue drained by a single writer goroutine,
// so concurrent Sends keep their order per connection.
type Conn struct {
	ws   *websocket.Conn
	opts Options

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	mu       sync.Mutex
	deadline time.Time // hard read deadline from the caller's context, zero if none
}

var _ relay.Channel = (*Conn)(nil)

// NewConn wraps ws and starts its write pump.
func NewConn(ws *websocket.Conn, opts Options) *Conn {
	opts.defaults()
	c := &Conn{
		ws:   ws,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(c.nextDeadline())
	})

	go c.writePump()
	return c
}

// Receive reads the next text or binary frame.
func (c *Conn) Receive(ctx context.Context) (relay.Frame, error) {
	if c.closed.Load() {
		return relay.Frame{}, relay.ErrChannelClosed
	}

	hard, _ := ctx.Deadline()
	c.mu.Lock()
	c.deadline = hard
	c.mu.Unlock()

	if err := c.ws.SetReadDeadline(c.nextDeadline()); err != nil {
		return relay.Frame{}, c.readError(ctx, err)
	}

	// Unblock the read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	kind, r, err := c.ws.NextReader()
	if err != nil {
		return relay.Frame{}, c.readError(ctx, err)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.opts.ReadLimit+1))
	if err != nil {
		return relay.Frame{}, c.readError(ctx, err)
	}
	if int64(len(data)) > c.opts.ReadLimit {
		// Consume the rest of the frame so the close frame the caller sends
		// is not lost to a connection reset.
		if _, err := io.CopyN(io.Discard, r, maxDrain); err != nil && !errors.Is(err, io.EOF) {
			return relay.Frame{}, c.readError(ctx, err)
		}
		return relay.Frame{}, fmt.Errorf("%w: frame exceeds %d bytes", relay.ErrFrameTooLarge, c.opts.ReadLimit)
	}

	frame := relay.Frame{Kind: relay.TextFrame, Data: data}
	if kind == websocket.BinaryMessage {
		frame.Kind = relay.BinaryFrame
	}
	return frame, nil
}

// Send queues payload for the write pump, waiting for room in the queue
// until ctx is done.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return relay.ErrChannelClosed
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return relay.ErrChannelClosed
	case <-ctx.Done():
		return fmt.Errorf("send queue full: %w", ctx.Err())
	}
}

// Close sends a close frame carrying code and reason, then drops the socket.
func (c *Conn) Close(code relay.CloseCode, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		msg := websocket.FormatCloseMessage(code.Status(), reason)
		werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) && !errors.Is(werr, net.ErrClosed) {
			c.opts.Logger.Debug("ws.close_frame", "err", werr)
		}
		err = c.ws.Close()
	})
	return err
}

// Closed reports whether the connection is known to be gone.
func (c *Conn) Closed() bool { return c.closed.Load() }

// RemoteAddr is the peer's network address.
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.opts.Logger.Debug("ws.write", "err", err)
				c.abort()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.abort()
				return
			}
		}
	}
}

// abort tears the connection down without a close handshake.
func (c *Conn) abort() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.ws.Close()
	})
}

// nextDeadline is the keepalive deadline, capped by the caller's hard deadline.
func (c *Conn) nextDeadline() time.Time {
	d := time.Now().Add(c.opts.PongWait)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deadline.IsZero() && c.deadline.Before(d) {
		return c.deadline
	}
	return d
}

func (c *Conn) readError(ctx context.Context, err error) error {
	// gorilla connections are unusable after any read error.
	c.closed.Store(true)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", relay.ErrReceiveTimeout, err)
		}
		return fmt.Errorf("%w: %v", relay.ErrChannelClosed, ctxErr)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", relay.ErrReceiveTimeout, err)
	}
	return fmt.Errorf("%w: %v", relay.ErrChannelClosed, err)
}
