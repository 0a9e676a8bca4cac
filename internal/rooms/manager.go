package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RanFeng/ilog"

	"vidsync/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomNotEmpty = errors.New("room still has members")
)

const (
	DefaultChatLimit  = 50
	DefaultStaleAfter = 10 * time.Minute
)

// Options configures a Manager. A zero StaleAfter selects DefaultStaleAfter
// and a negative one disables the staleness check.
type Options struct {
	ChatLimit  int
	StaleAfter time.Duration
	Now        func() time.Time
}

// Manager is the room store. Rooms are created on first join and removed as
// soon as their last member leaves.
type Manager struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	chatLimit  int
	staleAfter time.Duration
	now        func() time.Time
}

func NewManager(opts Options) *Manager {
	if opts.ChatLimit <= 0 {
		opts.ChatLimit = DefaultChatLimit
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		rooms:      make(map[string]*Room),
		chatLimit:  opts.ChatLimit,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
	}
}

// GetOrCreate returns the room for roomID, creating a fresh one if needed.
// The second result reports whether the room was created.
func (m *Manager) GetOrCreate(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[roomID]; ok {
		return room, false
	}
	room := NewRoom(roomID, m.chatLimit)
	m.rooms[roomID] = room
	ilog.EventInfo(context.Background(), "room_created", "roomId", roomID)
	return room, true
}

func (m *Manager) Get(roomID string) (*Room, error) {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Remove deletes an empty room. The relay calls it once the last member has
// left.
func (m *Manager) Remove(roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if room.MemberCount() > 0 {
		return ErrRoomNotEmpty
	}
	delete(m.rooms, roomID)
	ilog.EventInfo(context.Background(), "room_deleted", "roomId", roomID)
	return nil
}

func (m *Manager) AppendChatMessage(roomID string, msg protocol.ChatMessage) (protocol.ChatMessage, error) {
	room, err := m.Get(roomID)
	if err != nil {
		return protocol.ChatMessage{}, err
	}
	return room.AppendChat(msg), nil
}

func (m *Manager) GetPlaybackState(roomID string) (PlaybackState, error) {
	room, err := m.Get(roomID)
	if err != nil {
		return PlaybackState{}, err
	}
	return room.Playback(), nil
}

func (m *Manager) UpdatePlaybackState(roomID string, currentTime float64, isPlaying bool) (PlaybackState, error) {
	room, err := m.Get(roomID)
	if err != nil {
		return PlaybackState{}, err
	}
	return room.SetPlayback(currentTime, isPlaying, m.now()), nil
}

// ApplyVideoEvent updates the room's playback state from a member's event and
// returns the normalized event name. Seeks keep the current play/pause state.
// Callers serialize events per room.
func (m *Manager) ApplyVideoEvent(roomID, eventName string, currentTime float64) (string, error) {
	event, err := NormalizeEvent(eventName)
	if err != nil {
		return "", err
	}
	state, err := m.GetPlaybackState(roomID)
	if err != nil {
		return "", err
	}

	playing := state.IsPlaying
	switch event {
	case protocol.EventPlay:
		playing = true
	case protocol.EventPause:
		playing = false
	}
	if _, err := m.UpdatePlaybackState(roomID, currentTime, playing); err != nil {
		return "", err
	}
	return event, nil
}

// Snapshot returns the adjusted playback state of a room. Missing rooms,
// rooms nobody has reported on yet and stale state all yield an unavailable
// snapshot.
func (m *Manager) Snapshot(roomID string) protocol.PlaybackSnapshot {
	state, err := m.GetPlaybackState(roomID)
	if err != nil {
		return Unavailable()
	}
	return state.Snapshot(m.now(), m.staleAfter)
}

func (m *Manager) Info(roomID string) (protocol.RoomInfo, error) {
	room, err := m.Get(roomID)
	if err != nil {
		return protocol.RoomInfo{}, err
	}
	return protocol.RoomInfo{
		RoomID:      roomID,
		MemberCount: room.MemberCount(),
		ChatCount:   room.ChatCount(),
		Playback:    room.Playback().Snapshot(m.now(), m.staleAfter),
	}, nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
