package rooms

import (
	"errors"
	"fmt"
	"time"

	"vidsync/internal/protocol"
)

var ErrUnknownEvent = errors.New("unknown playback event")

// PlaybackState is the last playback report received for a room. A zero
// LastUpdated means no member has reported yet.
type PlaybackState struct {
	CurrentTime float64
	IsPlaying   bool
	LastUpdated time.Time
}

func (p PlaybackState) Reported() bool {
	return !p.LastUpdated.IsZero()
}

// NormalizeEvent maps raw client event names onto play, pause or seek.
func NormalizeEvent(eventName string) (string, error) {
	switch eventName {
	case protocol.EventPlay, protocol.EventPause, protocol.EventSeek:
		return eventName, nil
	case protocol.EventSeeked:
		return protocol.EventSeek, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, eventName)
}

// AdjustedTime projects a playing video forward by the wall-clock time elapsed
// since the last update. Paused state is returned unchanged.
func (p PlaybackState) AdjustedTime(now time.Time) float64 {
	if !p.IsPlaying {
		return p.CurrentTime
	}
	elapsed := now.Sub(p.LastUpdated)
	if elapsed < 0 {
		elapsed = 0
	}
	return p.CurrentTime + elapsed.Seconds()
}

// Stale reports whether the state is older than staleAfter. A non-positive
// threshold disables the check.
func (p PlaybackState) Stale(now time.Time, staleAfter time.Duration) bool {
	if staleAfter <= 0 {
		return false
	}
	return now.Sub(p.LastUpdated) > staleAfter
}

// Snapshot renders the state for clients, withholding it until the first
// report and once it is stale.
func (p PlaybackState) Snapshot(now time.Time, staleAfter time.Duration) protocol.PlaybackSnapshot {
	if !p.Reported() || p.Stale(now, staleAfter) {
		return Unavailable()
	}
	return protocol.PlaybackSnapshot{
		Available:   true,
		CurrentTime: p.AdjustedTime(now),
		IsPlaying:   p.IsPlaying,
		Paused:      !p.IsPlaying,
		LastUpdated: p.LastUpdated.UnixMilli(),
	}
}

func Unavailable() protocol.PlaybackSnapshot {
	return protocol.PlaybackSnapshot{
		Available: false,
		Paused:    true,
		Reason:    protocol.NoPlaybackInfo,
	}
}
