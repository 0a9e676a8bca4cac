package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/RanFeng/ilog"

	"vidsync/internal/protocol"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown message type")
)

// Receive handles one inbound frame. Frames that cannot be handled are logged
// and dropped; the connection stays open.
func (h *Hub) Receive(ctx context.Context, connID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.dispatch(ctx, connID, data); err != nil {
		ilog.EventInfo(ctx, "frame_dropped", "clientId", connID, "err", err)
	}
}

func (h *Hub) dispatch(ctx context.Context, connID string, data []byte) error {
	in, err := protocol.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	handler, ok := h.handlers[in.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	return handler(h, ctx, conn, in)
}

func (h *Hub) handleJoinRoom(ctx context.Context, conn *Connection, in protocol.Inbound) error {
	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		return fmt.Errorf("%w: joinRoom without roomId", ErrMalformedFrame)
	}
	return h.join(ctx, conn, roomID, strings.TrimSpace(in.Username))
}

func (h *Hub) handleLeaveRoom(ctx context.Context, conn *Connection, _ protocol.Inbound) error {
	h.leave(ctx, conn)
	return nil
}

func (h *Hub) handleUpdateUsername(ctx context.Context, conn *Connection, in protocol.Inbound) error {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return fmt.Errorf("%w: updateUsername without username", ErrMalformedFrame)
	}
	h.rename(ctx, conn, username)
	return nil
}

func (h *Hub) handleVideoEvent(ctx context.Context, conn *Connection, in protocol.Inbound) error {
	if !conn.InRoom() {
		return nil
	}
	if in.CurrentTime == nil || *in.CurrentTime < 0 {
		return fmt.Errorf("%w: videoEvent without a valid currentTime", ErrMalformedFrame)
	}

	event, err := h.rooms.ApplyVideoEvent(conn.RoomID, in.EventName, *in.CurrentTime)
	if err != nil {
		return err
	}
	room, err := h.rooms.Get(conn.RoomID)
	if err != nil {
		return err
	}
	h.broadcast(ctx, room, protocol.VideoCommand{
		Type:        protocol.TypeVideoCommand,
		EventName:   event,
		CurrentTime: *in.CurrentTime,
		SenderID:    conn.ID,
	}, conn.ID)
	return nil
}

// handleChatMessage attributes the message to the sender's display name; a
// username field in the frame is not trusted.
func (h *Hub) handleChatMessage(ctx context.Context, conn *Connection, in protocol.Inbound) error {
	if !conn.InRoom() {
		return nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return fmt.Errorf("%w: empty chatMessage", ErrMalformedFrame)
	}
	if n := utf8.RuneCountInString(text); n > protocol.MaxChatTextLength {
		return fmt.Errorf("%w: chatMessage of %d characters exceeds %d", ErrMalformedFrame, n, protocol.MaxChatTextLength)
	}
	timestamp := in.Timestamp
	if timestamp == 0 {
		timestamp = h.now().UnixMilli()
	}

	room, err := h.rooms.Get(conn.RoomID)
	if err != nil {
		return err
	}
	msg, err := h.rooms.AppendChatMessage(room.ID(), protocol.ChatMessage{
		Username:  conn.DisplayName,
		Text:      text,
		Timestamp: timestamp,
	})
	if err != nil {
		return err
	}
	h.broadcast(ctx, room, msg, "")
	return nil
}

// handleRequestSync answers with the adjusted playback state of the named
// room, or the sender's own room when none is named. When the sender's room
// has nothing fresh to offer, another member is asked to report its position.
func (h *Hub) handleRequestSync(ctx context.Context, conn *Connection, in protocol.Inbound) error {
	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		roomID = conn.RoomID
	}
	if roomID == "" {
		return nil
	}

	snap := h.rooms.Snapshot(roomID)
	h.send(ctx, conn, protocol.SyncState{
		Type:             protocol.TypeSyncState,
		RoomID:           roomID,
		PlaybackSnapshot: snap,
	})
	if !snap.Available && roomID == conn.RoomID {
		h.askPeerForSync(ctx, conn)
	}
	return nil
}

func (h *Hub) handlePing(ctx context.Context, conn *Connection, _ protocol.Inbound) error {
	h.send(ctx, conn, protocol.Pong{Type: protocol.TypePong})
	return nil
}

func (h *Hub) askPeerForSync(ctx context.Context, conn *Connection) {
	room, err := h.rooms.Get(conn.RoomID)
	if err != nil {
		return
	}
	for _, id := range room.MemberIDs() {
		if id == conn.ID {
			continue
		}
		peer, ok := h.registry.Lookup(id)
		if !ok {
			continue
		}
		h.send(ctx, peer, protocol.SyncRequest{
			Type:        protocol.TypeSyncRequest,
			RequesterID: conn.ID,
		})
		return
	}
}
