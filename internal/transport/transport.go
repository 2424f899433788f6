package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultQueueSize bounds the outbound FIFO. The source this protocol comes
// from used an unbounded queue; overflowing the bound here is treated as a
// connection failure instead of unbounded memory growth.
const DefaultQueueSize = 8192

var (
	// ErrWriterClosed is returned by Send after Close.
	ErrWriterClosed = errors.New("transport: writer closed")
	// ErrOverflow is returned by Send when the outbound queue is full. The
	// current connection is torn down as a consequence.
	ErrOverflow = errors.New("transport: writer queue overflow")
	// ErrNotConnected is returned by SendDirect without a live socket.
	ErrNotConnected = errors.New("transport: not connected")
)

// Conn is a reconnectable framed stream. The outbound queue belongs to the
// Conn, not to any single connection: frames enqueued while disconnected or
// suspended are flushed once a later connection's writer starts.
//
// Two workers cooperate per connection: the writer drains the queue into the
// socket, the reader pushes decoded frames onto the inbound channel. The
// writer does not start with the connection; the session starts it once the
// handshake has completed, so queued frames never overtake auth/resume.
// Handshake frames use SendDirect, which bypasses the queue. On network
// error the writer is stopped first so no further outbound traffic is
// produced, then the inbound channel is closed; the closure is the
// disconnect signal for the consumer.
type Conn struct {
	url    string
	logger *slog.Logger

	queue chan Message

	mu         sync.Mutex
	ws         *websocket.Conn
	writeMu    sync.Mutex // serializes raw socket writes
	inbound    chan Message
	writerStop chan struct{}
	writerOn   bool
	closed     bool
}

// New creates a Conn for the given websocket URL. queueSize <= 0 selects
// DefaultQueueSize.
func New(url string, queueSize int, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Conn{
		url:    url,
		logger: logger,
		queue:  make(chan Message, queueSize),
	}
}

// Connect dials the chat server and starts the reader. It returns once the
// stream is usable. The writer stays stopped until StartWriter. Calling
// Connect while a previous connection is still up tears the old one down
// first.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrWriterClosed
	}
	if c.ws != nil {
		c.teardownLocked()
	}
	c.mu.Unlock()

	c.logger.Info("connecting", "url", c.url)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.inbound = make(chan Message, 64)
	c.writerStop = make(chan struct{})
	c.writerOn = false
	go c.reader(ws, c.inbound)
	c.mu.Unlock()
	return nil
}

// StartWriter begins draining the queue into the current connection. Called
// by the session once the handshake is done; until then queued frames wait.
// Idempotent per connection.
func (c *Conn) StartWriter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.writerOn {
		return
	}
	c.writerOn = true
	go c.writer(c.ws, c.writerStop)
}

// Send enqueues an outbound frame. It never blocks on the network. It fails
// with ErrWriterClosed after Close, or with ErrOverflow when the queue is
// full (in which case the current connection is also torn down).
func (c *Conn) Send(m Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrWriterClosed
	}
	c.mu.Unlock()

	select {
	case c.queue <- m:
		return nil
	default:
		c.logger.Error("outbound queue overflow, dropping connection", "capacity", cap(c.queue))
		c.mu.Lock()
		c.teardownLocked()
		c.mu.Unlock()
		return ErrOverflow
	}
}

// SendDirect writes a frame to the socket immediately, bypassing the queue.
// Reserved for handshake traffic (auth, resume, subscribe, joins, pong).
func (c *Conn) SendDirect(m Message) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.logger.Debug("<-", "frame", string(data))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Inbound returns the inbound frame channel of the current connection. The
// channel is closed when the connection dies; a later Connect installs a
// fresh one. Returns nil when no connection has been established yet.
func (c *Conn) Inbound() <-chan Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inbound
}

// SuspendWriter stops the writer worker only, keeping the queue contents and
// the reader alive. Used when the server announces a session suspension: the
// server will close the socket shortly, and the queued frames must survive
// to be flushed after resume.
func (c *Conn) SuspendWriter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopWriterLocked()
}

// QueueLen returns the number of frames waiting in the outbound queue.
func (c *Conn) QueueLen() int { return len(c.queue) }

// Close stops both workers and closes the socket. Frames still in the queue
// are discarded. Send fails afterwards.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.teardownLocked()
}

func (c *Conn) stopWriterLocked() {
	if c.writerStop != nil && c.writerOn {
		close(c.writerStop)
		c.writerOn = false
	}
}

// teardownLocked stops the writer first, then closes the socket so the
// reader observes end-of-stream and exits.
func (c *Conn) teardownLocked() {
	c.stopWriterLocked()
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
}

func (c *Conn) writer(ws *websocket.Conn, stop chan struct{}) {
	c.logger.Debug("writer started", "queued", len(c.queue))
	for {
		select {
		case <-stop:
			c.logger.Debug("writer stopped")
			return
		case m := <-c.queue:
			data, err := m.Encode()
			if err != nil {
				c.logger.Error("cannot encode outbound frame", "type", m.Type, "error", err)
				continue
			}
			c.logger.Debug("<-", "frame", string(data))
			c.writeMu.Lock()
			err = ws.WriteMessage(websocket.TextMessage, data)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn("write failed", "error", err)
				// The reader will observe the broken socket and finish the
				// teardown.
				_ = ws.Close()
				return
			}
		}
	}
}

func (c *Conn) reader(ws *websocket.Conn, inbound chan Message) {
	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.stopWriterLocked()
			_ = ws.Close()
			c.ws = nil
		}
		c.mu.Unlock()
		close(inbound)
		c.logger.Info("disconnected")
	}()

	for {
		kind, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection closed by server")
			} else {
				c.logger.Warn("read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.logger.Debug("->", "frame", string(raw))
		m, err := Decode(raw)
		if err != nil {
			// Bad frames are logged, never fatal.
			c.logger.Error("invalid incoming frame", "error", err)
			continue
		}
		inbound <- m
	}
}
