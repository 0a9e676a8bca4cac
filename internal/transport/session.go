package transport

import (
	"context"
	"sync"
	"time"

	"github.com/RanFeng/ilog"

	"vidsync/internal/relay"
)

// Frame opcodes shared by gorilla/websocket and hertz-contrib/websocket.
const (
	TextMessage   = 1
	BinaryMessage = 2
	PingMessage   = 9
)

const (
	writeWait = 10 * time.Second
	queueSize = 256

	DefaultPongWait = 60 * time.Second
	// DefaultMaxFrameSize bounds a single inbound frame. Oversized frames
	// end the session, so it sits well above any legitimate message.
	DefaultMaxFrameSize = 64 * 1024
)

// Conn is the subset of a websocket connection the session needs. Both
// *gorilla/websocket.Conn and *hertz-contrib/websocket.Conn satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Hub is the relay side of a session.
type Hub interface {
	Connect(ctx context.Context, t relay.Transport) string
	Receive(ctx context.Context, connID string, data []byte)
	Disconnect(ctx context.Context, connID string)
}

type Options struct {
	PongWait     time.Duration
	MaxFrameSize int64
	// IsUnexpectedClose classifies read errors worth logging. Each websocket
	// library has its own close error type.
	IsUnexpectedClose func(err error) bool
}

// Session pumps frames between one websocket connection and the hub.
type Session struct {
	conn      Conn
	hub       Hub
	opts      Options
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn Conn, hub Hub, opts Options) *Session {
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	return &Session{
		conn: conn,
		hub:  hub,
		opts: opts,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Send queues a frame without blocking.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return relay.ErrConnectionClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return relay.ErrConnectionClosed
	default:
		return relay.ErrConnectionClosed
	}
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// Run registers the session with the hub and blocks until the connection
// ends. The hub always sees exactly one Disconnect.
func (s *Session) Run(ctx context.Context) {
	go s.writePump()
	connID := s.hub.Connect(ctx, s)
	defer func() {
		s.hub.Disconnect(ctx, connID)
		s.Close()
	}()
	s.readPump(ctx, connID)
}

func (s *Session) readPump(ctx context.Context, connID string) {
	s.conn.SetReadLimit(s.opts.MaxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.opts.IsUnexpectedClose != nil && s.opts.IsUnexpectedClose(err) {
				ilog.EventInfo(ctx, "read_failed", "clientId", connID, "err", err)
			}
			return
		}
		if msgType != TextMessage {
			continue
		}
		s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		s.hub.Receive(ctx, connID, data)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
