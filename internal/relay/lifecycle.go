package relay

import (
	"context"
	"fmt"

	"github.com/RanFeng/ilog"

	"vidsync/internal/protocol"
	"vidsync/internal/rooms"
)

// join moves conn into roomID, leaving its previous room first. Joining the
// room the connection is already in only re-sends the acknowledgement.
func (h *Hub) join(ctx context.Context, conn *Connection, roomID, username string) error {
	if conn.RoomID == roomID {
		room, err := h.rooms.Get(roomID)
		if err != nil {
			return err
		}
		if username != "" {
			h.rename(ctx, conn, username)
		}
		h.sendJoinAck(ctx, conn, room)
		return nil
	}

	// A name sent with the join is applied silently; the join notice below
	// already carries it.
	if username != "" {
		conn.DisplayName = username
	}
	if conn.InRoom() {
		h.leave(ctx, conn)
	}

	room, _ := h.rooms.GetOrCreate(roomID)
	room.AddMember(conn.ID)
	conn.RoomID = roomID
	ilog.EventInfo(ctx, "room_joined", "clientId", conn.ID, "roomId", roomID, "members", room.MemberCount())

	h.sendJoinAck(ctx, conn, room)
	h.announce(ctx, room, fmt.Sprintf("%s joined the room", conn.DisplayName))
	h.broadcastMemberCount(ctx, room)
	return nil
}

// leave removes conn from its room. The last member out deletes the room
// together with its playback state and chat history.
func (h *Hub) leave(ctx context.Context, conn *Connection) {
	if !conn.InRoom() {
		return
	}
	roomID := conn.RoomID
	conn.RoomID = ""

	room, err := h.rooms.Get(roomID)
	if err != nil {
		ilog.EventInfo(ctx, "leave_unknown_room", "clientId", conn.ID, "roomId", roomID)
		return
	}
	remaining := room.RemoveMember(conn.ID)
	ilog.EventInfo(ctx, "room_left", "clientId", conn.ID, "roomId", roomID, "members", remaining)

	if remaining == 0 {
		if err := h.rooms.Remove(roomID); err != nil {
			ilog.EventInfo(ctx, "room_remove_failed", "roomId", roomID, "err", err)
		}
		return
	}
	h.announce(ctx, room, fmt.Sprintf("%s left the room", conn.DisplayName))
	h.broadcastMemberCount(ctx, room)
}

func (h *Hub) rename(ctx context.Context, conn *Connection, username string) {
	old := conn.DisplayName
	if old == username {
		return
	}
	conn.DisplayName = username
	ilog.EventInfo(ctx, "username_updated", "clientId", conn.ID, "from", old, "to", username)

	if !conn.InRoom() {
		return
	}
	room, err := h.rooms.Get(conn.RoomID)
	if err != nil {
		return
	}
	h.announce(ctx, room, fmt.Sprintf("%s is now known as %s", old, username))
}

// sendJoinAck tells the joiner where it is: the acknowledgement, the current
// playback state and any buffered chat.
func (h *Hub) sendJoinAck(ctx context.Context, conn *Connection, room *rooms.Room) {
	h.send(ctx, conn, protocol.RoomJoined{
		Type:        protocol.TypeRoomJoined,
		RoomID:      room.ID(),
		MemberCount: room.MemberCount(),
	})
	h.send(ctx, conn, protocol.SyncState{
		Type:             protocol.TypeSyncState,
		RoomID:           room.ID(),
		PlaybackSnapshot: h.rooms.Snapshot(room.ID()),
	})
	if history := room.ChatHistory(); len(history) > 0 {
		h.send(ctx, conn, protocol.ChatHistory{
			Type:     protocol.TypeChatHistory,
			RoomID:   room.ID(),
			Messages: history,
		})
	}
}

// announce records a system notice in the room history and delivers it to
// every member.
func (h *Hub) announce(ctx context.Context, room *rooms.Room, text string) {
	msg, err := h.rooms.AppendChatMessage(room.ID(), protocol.ChatMessage{
		Text:      text,
		Timestamp: h.now().UnixMilli(),
		IsSystem:  true,
	})
	if err != nil {
		ilog.EventInfo(ctx, "announce_failed", "roomId", room.ID(), "err", err)
		return
	}
	h.broadcast(ctx, room, msg, "")
}

func (h *Hub) broadcastMemberCount(ctx context.Context, room *rooms.Room) {
	h.broadcast(ctx, room, protocol.MemberUpdate{
		Type:        protocol.TypeMemberUpdate,
		MemberCount: room.MemberCount(),
	}, "")
}
