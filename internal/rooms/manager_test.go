package rooms

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"vidsync/internal/protocol"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(Options{Now: clock.Now}), clock
}

// TestGetOrCreate 测试首次加入创建房间
func TestGetOrCreate(t *testing.T) {
	manager, _ := newTestManager()

	room, created := manager.GetOrCreate("abc")
	if !created {
		t.Fatal("first GetOrCreate should create the room")
	}
	if room.ID() != "abc" {
		t.Errorf("RoomID mismatch: expected abc, got %s", room.ID())
	}

	again, created := manager.GetOrCreate("abc")
	if created {
		t.Error("second GetOrCreate should reuse the room")
	}
	if again != room {
		t.Error("GetOrCreate returned a different room instance")
	}

	state := room.Playback()
	if state.CurrentTime != 0 || state.IsPlaying {
		t.Errorf("new room should be paused at 0, got %+v", state)
	}
	if room.ChatCount() != 0 {
		t.Error("new room should have empty chat history")
	}
}

// TestRoomIDsAreCaseSensitive 测试房间号区分大小写
func TestRoomIDsAreCaseSensitive(t *testing.T) {
	manager, _ := newTestManager()
	manager.GetOrCreate("Room")
	manager.GetOrCreate("room")

	if manager.Count() != 2 {
		t.Errorf("expected 2 rooms, got %d", manager.Count())
	}
}

// TestGetNonExistentRoom 测试获取不存在的房间
func TestGetNonExistentRoom(t *testing.T) {
	manager, _ := newTestManager()
	_, err := manager.Get("missing")
	if err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

// TestRemove 测试只能删除空房间
func TestRemove(t *testing.T) {
	manager, _ := newTestManager()
	room, _ := manager.GetOrCreate("abc")
	room.AddMember("c1")

	if err := manager.Remove("abc"); !errors.Is(err, ErrRoomNotEmpty) {
		t.Fatalf("Expected ErrRoomNotEmpty, got %v", err)
	}

	room.RemoveMember("c1")
	if err := manager.Remove("abc"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if manager.Count() != 0 {
		t.Error("room should be gone after Remove")
	}
	if err := manager.Remove("abc"); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

// TestRecreatedRoomIsFresh 测试房间删除后重新创建不保留旧状态
func TestRecreatedRoomIsFresh(t *testing.T) {
	manager, _ := newTestManager()
	room, _ := manager.GetOrCreate("abc")
	room.AddMember("c1")
	if _, err := manager.UpdatePlaybackState("abc", 42, true); err != nil {
		t.Fatalf("UpdatePlaybackState failed: %v", err)
	}
	if _, err := manager.AppendChatMessage("abc", protocol.ChatMessage{Text: "hi"}); err != nil {
		t.Fatalf("AppendChatMessage failed: %v", err)
	}

	room.RemoveMember("c1")
	if err := manager.Remove("abc"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	fresh, created := manager.GetOrCreate("abc")
	if !created {
		t.Fatal("room should be recreated")
	}
	if fresh.Playback().CurrentTime != 0 || fresh.Playback().IsPlaying {
		t.Errorf("recreated room kept playback state: %+v", fresh.Playback())
	}
	if fresh.ChatCount() != 0 {
		t.Errorf("recreated room kept %d chat messages", fresh.ChatCount())
	}
}

// TestFreshRoomHasNoPlaybackInfo 测试新房间在收到播放事件前没有播放信息
func TestFreshRoomHasNoPlaybackInfo(t *testing.T) {
	manager, clock := newTestManager()
	manager.GetOrCreate("abc")

	snap := manager.Snapshot("abc")
	if snap.Available {
		t.Fatalf("fresh room should be unavailable, got %+v", snap)
	}
	if snap.Reason != protocol.NoPlaybackInfo || !snap.Paused {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	clock.Advance(time.Second)
	if _, err := manager.ApplyVideoEvent("abc", "seeked", 12); err != nil {
		t.Fatalf("ApplyVideoEvent failed: %v", err)
	}
	snap = manager.Snapshot("abc")
	if !snap.Available || snap.CurrentTime != 12 || snap.IsPlaying {
		t.Errorf("expected paused state at 12 after first event, got %+v", snap)
	}
	if snap.LastUpdated != clock.Now().UnixMilli() {
		t.Errorf("expected LastUpdated %d, got %d", clock.Now().UnixMilli(), snap.LastUpdated)
	}
}

// TestStaleCheckDisabled 测试负数阈值关闭过期检查
func TestStaleCheckDisabled(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	manager := NewManager(Options{StaleAfter: -1, Now: clock.Now})
	manager.GetOrCreate("abc")

	if _, err := manager.UpdatePlaybackState("abc", 5, false); err != nil {
		t.Fatalf("UpdatePlaybackState failed: %v", err)
	}
	clock.Advance(24 * time.Hour)
	if snap := manager.Snapshot("abc"); !snap.Available {
		t.Errorf("negative threshold should never expire state, got %+v", snap)
	}
}

// TestChatBufferBound 测试聊天记录只保留最近的消息
func TestChatBufferBound(t *testing.T) {
	manager, _ := newTestManager()
	manager.GetOrCreate("abc")

	for i := 0; i < 75; i++ {
		if _, err := manager.AppendChatMessage("abc", protocol.ChatMessage{Text: fmt.Sprintf("msg-%d", i)}); err != nil {
			t.Fatalf("AppendChatMessage failed: %v", err)
		}
	}

	room, _ := manager.Get("abc")
	history := room.ChatHistory()
	if len(history) != DefaultChatLimit {
		t.Fatalf("expected %d messages, got %d", DefaultChatLimit, len(history))
	}
	for i, msg := range history {
		want := fmt.Sprintf("msg-%d", i+25)
		if msg.Text != want {
			t.Fatalf("history[%d]: expected %s, got %s", i, want, msg.Text)
		}
		if msg.Seq != uint64(i+26) {
			t.Fatalf("history[%d]: expected seq %d, got %d", i, i+26, msg.Seq)
		}
	}
}

// TestAppendChatToMissingRoom 测试向不存在的房间追加消息
func TestAppendChatToMissingRoom(t *testing.T) {
	manager, _ := newTestManager()
	if _, err := manager.AppendChatMessage("missing", protocol.ChatMessage{Text: "hi"}); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

// TestPlaybackProjection 测试播放中按经过时间推算进度
func TestPlaybackProjection(t *testing.T) {
	manager, clock := newTestManager()
	manager.GetOrCreate("abc")

	if _, err := manager.UpdatePlaybackState("abc", 100, true); err != nil {
		t.Fatalf("UpdatePlaybackState failed: %v", err)
	}
	clock.Advance(5 * time.Second)

	snap := manager.Snapshot("abc")
	if !snap.Available {
		t.Fatal("fresh state should be available")
	}
	if math.Abs(snap.CurrentTime-105) > 0.001 {
		t.Errorf("expected adjusted time ~105, got %f", snap.CurrentTime)
	}
	if !snap.IsPlaying || snap.Paused {
		t.Errorf("expected playing snapshot, got %+v", snap)
	}
}

// TestPausedPlaybackIsNotProjected 测试暂停时不推算进度
func TestPausedPlaybackIsNotProjected(t *testing.T) {
	manager, clock := newTestManager()
	manager.GetOrCreate("abc")

	if _, err := manager.UpdatePlaybackState("abc", 100, false); err != nil {
		t.Fatalf("UpdatePlaybackState failed: %v", err)
	}
	clock.Advance(5 * time.Second)

	snap := manager.Snapshot("abc")
	if snap.CurrentTime != 100 {
		t.Errorf("expected exactly 100, got %f", snap.CurrentTime)
	}
	if !snap.Paused {
		t.Error("expected paused snapshot")
	}
}

// TestStalePlayback 测试过期的播放状态不可用
func TestStalePlayback(t *testing.T) {
	manager, clock := newTestManager()
	manager.GetOrCreate("abc")

	if _, err := manager.UpdatePlaybackState("abc", 100, true); err != nil {
		t.Fatalf("UpdatePlaybackState failed: %v", err)
	}
	clock.Advance(DefaultStaleAfter + time.Second)

	snap := manager.Snapshot("abc")
	if snap.Available {
		t.Fatalf("stale state should be unavailable, got %+v", snap)
	}
	if snap.Reason != protocol.NoPlaybackInfo {
		t.Errorf("unexpected reason %q", snap.Reason)
	}
}

// TestSnapshotMissingRoom 测试不存在的房间没有播放信息
func TestSnapshotMissingRoom(t *testing.T) {
	manager, _ := newTestManager()
	if snap := manager.Snapshot("missing"); snap.Available {
		t.Errorf("missing room should be unavailable, got %+v", snap)
	}
}

// TestApplyVideoEvent 测试播放事件更新房间状态
func TestApplyVideoEvent(t *testing.T) {
	manager, clock := newTestManager()
	manager.GetOrCreate("abc")

	tests := []struct {
		event       string
		time        float64
		wantEvent   string
		wantPlaying bool
	}{
		{event: "play", time: 10, wantEvent: "play", wantPlaying: true},
		{event: "seek", time: 30, wantEvent: "seek", wantPlaying: true},
		{event: "pause", time: 31, wantEvent: "pause", wantPlaying: false},
		{event: "seeked", time: 60, wantEvent: "seek", wantPlaying: false},
	}

	for _, tt := range tests {
		clock.Advance(time.Second)
		got, err := manager.ApplyVideoEvent("abc", tt.event, tt.time)
		if err != nil {
			t.Fatalf("ApplyVideoEvent(%s) failed: %v", tt.event, err)
		}
		if got != tt.wantEvent {
			t.Errorf("ApplyVideoEvent(%s): expected event %s, got %s", tt.event, tt.wantEvent, got)
		}
		state, _ := manager.GetPlaybackState("abc")
		if state.CurrentTime != tt.time || state.IsPlaying != tt.wantPlaying {
			t.Errorf("after %s: unexpected state %+v", tt.event, state)
		}
		if !state.LastUpdated.Equal(clock.Now()) {
			t.Errorf("after %s: LastUpdated not stamped", tt.event)
		}
	}
}

// TestApplyUnknownVideoEvent 测试未知事件不修改状态
func TestApplyUnknownVideoEvent(t *testing.T) {
	manager, _ := newTestManager()
	manager.GetOrCreate("abc")

	if _, err := manager.ApplyVideoEvent("abc", "rewind", 5); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("Expected ErrUnknownEvent, got %v", err)
	}
	state, _ := manager.GetPlaybackState("abc")
	if state.Reported() {
		t.Errorf("unknown event changed state: %+v", state)
	}
	if _, err := manager.ApplyVideoEvent("missing", "play", 5); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

// TestMemberSet 测试成员集合去重
func TestMemberSet(t *testing.T) {
	room := NewRoom("abc", DefaultChatLimit)

	if !room.AddMember("b") || !room.AddMember("a") {
		t.Fatal("AddMember should add new members")
	}
	if room.AddMember("a") {
		t.Error("AddMember should not add a duplicate")
	}
	if room.MemberCount() != 2 {
		t.Errorf("expected 2 members, got %d", room.MemberCount())
	}
	ids := room.MemberIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected member ids %v", ids)
	}
	if left := room.RemoveMember("a"); left != 1 {
		t.Errorf("expected 1 member left, got %d", left)
	}
	if room.HasMember("a") {
		t.Error("removed member still present")
	}
}

// TestInfo 测试房间概要信息
func TestInfo(t *testing.T) {
	manager, _ := newTestManager()
	room, _ := manager.GetOrCreate("abc")
	room.AddMember("c1")
	manager.AppendChatMessage("abc", protocol.ChatMessage{Text: "hi"})

	info, err := manager.Info("abc")
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.RoomID != "abc" || info.MemberCount != 1 || info.ChatCount != 1 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Playback.Available {
		t.Error("room without a video event should report no playback info")
	}

	if _, err := manager.Info("missing"); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}
