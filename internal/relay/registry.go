package relay

import (
	"errors"

	"github.com/segmentio/ksuid"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrConnectionClosed  = errors.New("connection closed")
)

// Transport is the write side of one client connection. Send must not block;
// it returns ErrConnectionClosed when the frame cannot be queued.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Connection is one live client session.
type Connection struct {
	ID          string
	DisplayName string
	// RoomID is empty while the connection is not in a room.
	RoomID    string
	transport Transport
}

func (c *Connection) InRoom() bool {
	return c.RoomID != ""
}

// Registry tracks live connections by id and by transport.
type Registry struct {
	conns       map[string]*Connection
	byTransport map[Transport]string
}

func NewRegistry() *Registry {
	return &Registry{
		conns:       make(map[string]*Connection),
		byTransport: make(map[Transport]string),
	}
}

// Register assigns a fresh id and guest name to t. KSUIDs carry a timestamp
// prefix and a random payload, so ids stay unique within a process.
func (r *Registry) Register(t Transport) *Connection {
	id := ksuid.New().String()
	conn := &Connection{
		ID:          id,
		DisplayName: guestName(id),
		transport:   t,
	}
	r.conns[id] = conn
	r.byTransport[t] = id
	return conn
}

func (r *Registry) Lookup(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

func (r *Registry) LookupTransport(t Transport) (*Connection, bool) {
	id, ok := r.byTransport[t]
	if !ok {
		return nil, false
	}
	return r.Lookup(id)
}

func (r *Registry) Unregister(id string) {
	conn, ok := r.conns[id]
	if !ok {
		return
	}
	delete(r.byTransport, conn.transport)
	delete(r.conns, id)
}

func (r *Registry) Count() int {
	return len(r.conns)
}

func (r *Registry) each(fn func(*Connection)) {
	for _, conn := range r.conns {
		fn(conn)
	}
}

// guestName uses the random tail of the id; the head is the timestamp and
// repeats for connections opened in the same second.
func guestName(id string) string {
	return "Guest_" + id[len(id)-5:]
}
