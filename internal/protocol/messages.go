package protocol

import (
	"encoding/json"
	"errors"
)

var ErrMissingType = errors.New("frame has no type")

// Client -> server frame types.
const (
	TypeJoinRoom       = "joinRoom"
	TypeLeaveRoom      = "leaveRoom"
	TypeUpdateUsername = "updateUsername"
	TypeVideoEvent     = "videoEvent"
	TypeChatMessage    = "chatMessage"
	TypeRequestSync    = "requestSync"
	TypePing           = "ping"
)

// Server -> client frame types. TypeChatMessage is shared by both directions.
const (
	TypeConnected    = "connected"
	TypeRoomJoined   = "roomJoined"
	TypeVideoCommand = "videoCommand"
	TypeChatHistory  = "chatHistory"
	TypeMemberUpdate = "memberUpdate"
	TypeSyncState    = "syncState"
	TypeSyncRequest  = "syncRequest"
	TypePong         = "pong"
)

// Playback event names accepted in videoEvent frames. EventSeeked is the raw
// DOM event name some clients send and is treated as EventSeek.
const (
	EventPlay   = "play"
	EventPause  = "pause"
	EventSeek   = "seek"
	EventSeeked = "seeked"
)

const NoPlaybackInfo = "no recent playback information available"

// MaxChatTextLength caps a chat message in characters after trimming.
const MaxChatTextLength = 2000

// Inbound is the union of every client frame. Only Type is mandatory; the
// router validates the fields each type needs.
type Inbound struct {
	Type        string   `json:"type"`
	RoomID      string   `json:"roomId,omitempty"`
	Username    string   `json:"username,omitempty"`
	EventName   string   `json:"eventName,omitempty"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Text        string   `json:"text,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
}

// Decode parses a raw frame. Frames without a type are rejected.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, ErrMissingType
	}
	return in, nil
}

type Connected struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Username string `json:"username"`
}

type RoomJoined struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
}

type VideoCommand struct {
	Type        string  `json:"type"`
	EventName   string  `json:"eventName"`
	CurrentTime float64 `json:"currentTime"`
	SenderID    string  `json:"senderId,omitempty"`
}

type ChatMessage struct {
	Type      string `json:"type"`
	Seq       uint64 `json:"seq"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsSystem  bool   `json:"isSystem,omitempty"`
}

type ChatHistory struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}

type MemberUpdate struct {
	Type        string `json:"type"`
	MemberCount int    `json:"memberCount"`
}

// PlaybackSnapshot is the adjusted playback state served to clients.
// When Available is false the remaining playback fields are meaningless and
// Reason explains why.
type PlaybackSnapshot struct {
	Available   bool    `json:"available"`
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	Paused      bool    `json:"paused"`
	LastUpdated int64   `json:"lastUpdated,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

type SyncState struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	PlaybackSnapshot
}

type SyncRequest struct {
	Type        string `json:"type"`
	RequesterID string `json:"requesterId"`
}

type Pong struct {
	Type string `json:"type"`
}

// RoomInfo is the HTTP introspection view of a room.
type RoomInfo struct {
	RoomID      string           `json:"roomId"`
	MemberCount int              `json:"memberCount"`
	ChatCount   int              `json:"chatCount"`
	Playback    PlaybackSnapshot `json:"playback"`
}

type Health struct {
	Status          string `json:"status"`
	RoomCount       int    `json:"roomCount"`
	ConnectionCount int    `json:"connectionCount"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Envelope struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}
