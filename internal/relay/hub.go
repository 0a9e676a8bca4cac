package relay

import (
	"context"
	"sync"
	"time"

	"github.com/RanFeng/ilog"

	"vidsync/internal/protocol"
	"vidsync/internal/rooms"
)

type handlerFunc func(h *Hub, ctx context.Context, conn *Connection, in protocol.Inbound) error

// Hub owns the connection registry and the room store. A single mutex
// serializes every frame, connect and disconnect, so each room sees a
// consistent order of membership and playback changes.
type Hub struct {
	mu       sync.Mutex
	registry *Registry
	rooms    *rooms.Manager
	handlers map[string]handlerFunc
	now      func() time.Time
}

func NewHub(manager *rooms.Manager) *Hub {
	return &Hub{
		registry: NewRegistry(),
		rooms:    manager,
		handlers: map[string]handlerFunc{
			protocol.TypeJoinRoom:       (*Hub).handleJoinRoom,
			protocol.TypeLeaveRoom:      (*Hub).handleLeaveRoom,
			protocol.TypeUpdateUsername: (*Hub).handleUpdateUsername,
			protocol.TypeVideoEvent:     (*Hub).handleVideoEvent,
			protocol.TypeChatMessage:    (*Hub).handleChatMessage,
			protocol.TypeRequestSync:    (*Hub).handleRequestSync,
			protocol.TypePing:           (*Hub).handlePing,
		},
		now: time.Now,
	}
}

// Connect registers a new transport and sends it the connected handshake.
// A transport that is already registered keeps its connection id.
func (h *Hub) Connect(ctx context.Context, t Transport) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.registry.LookupTransport(t); ok {
		ilog.EventInfo(ctx, "client_reconnect_ignored", "clientId", conn.ID)
		return conn.ID
	}
	conn := h.registry.Register(t)
	ilog.EventInfo(ctx, "client_connected", "clientId", conn.ID, "username", conn.DisplayName)
	h.send(ctx, conn, protocol.Connected{
		Type:     protocol.TypeConnected,
		ClientID: conn.ID,
		Username: conn.DisplayName,
	})
	return conn.ID
}

// Disconnect leaves the connection's room and forgets it. Clean closes and
// transport errors are handled the same way.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	h.leave(ctx, conn)
	h.registry.Unregister(connID)
	ilog.EventInfo(ctx, "client_disconnected", "clientId", connID)
}

// Stats backs the health endpoint.
func (h *Hub) Stats() protocol.Health {
	h.mu.Lock()
	defer h.mu.Unlock()

	return protocol.Health{
		Status:          "ok",
		RoomCount:       h.rooms.Count(),
		ConnectionCount: h.registry.Count(),
	}
}

func (h *Hub) RoomInfo(roomID string) (protocol.RoomInfo, error) {
	return h.rooms.Info(roomID)
}

// CloseAll closes every transport. Their read loops then report Disconnect.
func (h *Hub) CloseAll(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.each(func(conn *Connection) {
		if err := conn.transport.Close(); err != nil {
			ilog.EventInfo(ctx, "close_failed", "clientId", conn.ID, "err", err)
		}
	})
}
