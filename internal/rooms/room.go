package rooms

import (
	"sort"
	"sync"
	"time"

	"vidsync/internal/protocol"
)

// Room is a named synchronization context. Members are addressed by
// connection id; the relay owns the connections themselves.
type Room struct {
	id        string
	members   map[string]struct{}
	playback  PlaybackState
	chat      []protocol.ChatMessage
	chatLimit int
	seq       uint64
	mu        sync.RWMutex
}

// NewRoom starts with no playback report; members are asked for their
// position until one of them sends a video event.
func NewRoom(roomID string, chatLimit int) *Room {
	return &Room{
		id:        roomID,
		members:   make(map[string]struct{}),
		chat:      make([]protocol.ChatMessage, 0, chatLimit),
		chatLimit: chatLimit,
	}
}

func (r *Room) ID() string {
	return r.id
}

// AddMember reports whether the connection was newly added.
func (r *Room) AddMember(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[connID]; exists {
		return false
	}
	r.members[connID] = struct{}{}
	return true
}

// RemoveMember returns the number of members left after the removal.
func (r *Room) RemoveMember(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, connID)
	return len(r.members)
}

func (r *Room) HasMember(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[connID]
	return ok
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// MemberIDs returns the member ids in a stable order.
func (r *Room) MemberIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// AppendChat stamps msg with the next room-local sequence number and pushes it
// onto the history, evicting the oldest entries beyond the limit.
func (r *Room) AppendChat(msg protocol.ChatMessage) protocol.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	msg.Type = protocol.TypeChatMessage
	msg.Seq = r.seq
	r.chat = append(r.chat, msg)
	if over := len(r.chat) - r.chatLimit; over > 0 {
		copy(r.chat, r.chat[over:])
		r.chat = r.chat[:r.chatLimit]
	}
	return msg
}

// ChatHistory returns a copy of the buffered messages, oldest first.
func (r *Room) ChatHistory() []protocol.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := make([]protocol.ChatMessage, len(r.chat))
	copy(history, r.chat)
	return history
}

func (r *Room) ChatCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chat)
}

func (r *Room) Playback() PlaybackState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playback
}

func (r *Room) SetPlayback(currentTime float64, isPlaying bool, now time.Time) PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.playback = PlaybackState{
		CurrentTime: currentTime,
		IsPlaying:   isPlaying,
		LastUpdated: now,
	}
	return r.playback
}
