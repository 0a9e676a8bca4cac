package relay

import (
	"context"
	"encoding/json"

	"github.com/RanFeng/ilog"

	"vidsync/internal/rooms"
)

// broadcast serializes msg once and queues it for every member of room except
// exclude. A failed send is logged and skipped; the failing connection is
// cleaned up when its own transport reports the close. It returns the number
// of members the frame was queued for.
func (h *Hub) broadcast(ctx context.Context, room *rooms.Room, msg interface{}, exclude string) int {
	data, err := json.Marshal(msg)
	if err != nil {
		ilog.EventInfo(ctx, "marshal_failed", "roomId", room.ID(), "err", err)
		return 0
	}

	delivered := 0
	for _, id := range room.MemberIDs() {
		if id == exclude {
			continue
		}
		conn, ok := h.registry.Lookup(id)
		if !ok {
			continue
		}
		if err := conn.transport.Send(data); err != nil {
			ilog.EventInfo(ctx, "send_failed", "clientId", id, "roomId", room.ID(), "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) send(ctx context.Context, conn *Connection, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		ilog.EventInfo(ctx, "marshal_failed", "clientId", conn.ID, "err", err)
		return
	}
	if err := conn.transport.Send(data); err != nil {
		ilog.EventInfo(ctx, "send_failed", "clientId", conn.ID, "err", err)
	}
}
