package domain

import (
	"errors"
	"time"
)

// RestartThreshold is how far into a song "previous" restarts it instead of
// going back in history.
const RestartThreshold = 3 * time.Second

var ErrNegativePosition = errors.New("negative position")

// PlaybackState is the room's "now playing" record. Elapsed time is never
// ticked on the server: while playing it is derived from StartTime, while
// paused PausedPosition is authoritative.
type PlaybackState struct {
	RoomID         RoomID   `json:"roomId,omitempty"`
	SongID         string   `json:"songId"`
	Platform       Platform `json:"platform"`
	Title          string   `json:"title"`
	Artist         string   `json:"artist"`
	Thumbnail      string   `json:"thumbnail"`
	Duration       float64  `json:"duration"`
	StartTime      int64    `json:"startTime"` // epoch ms
	Paused         bool     `json:"isPaused"`
	PausedPosition *float64 `json:"pausedPosition"`
	ChangedBy      string   `json:"user"`
}

// NewPlayback starts song from zero at now.
func NewPlayback(room RoomID, song Song, by string, now time.Time) PlaybackState {
	return PlaybackState{
		RoomID:    room,
		SongID:    song.ID,
		Platform:  song.Platform,
		Title:     song.Title,
		Artist:    song.Artist,
		Thumbnail: song.Thumbnail,
		Duration:  song.Duration,
		StartTime: now.UnixMilli(),
		ChangedBy: by,
	}
}

func (p PlaybackState) Song() Song {
	return Song{
		ID:        p.SongID,
		Platform:  p.Platform,
		Title:     p.Title,
		Artist:    p.Artist,
		Thumbnail: p.Thumbnail,
		Duration:  p.Duration,
	}
}

// Elapsed returns the position in seconds at now.
func (p PlaybackState) Elapsed(now time.Time) float64 {
	if p.Paused && p.PausedPosition != nil {
		return *p.PausedPosition
	}
	return float64(now.UnixMilli()-p.StartTime) / 1000
}

// Normalize enforces the paused/position invariant on a state received from
// a client: a paused state without a position is pinned at its derived
// elapsed time, a playing state drops any stale position.
func (p PlaybackState) Normalize(now time.Time) PlaybackState {
	if p.Paused {
		if p.PausedPosition == nil {
			pos := float64(now.UnixMilli()-p.StartTime) / 1000
			p.PausedPosition = &pos
		}
		return p
	}
	p.PausedPosition = nil
	return p
}

func (p PlaybackState) Pause(now time.Time, by string) PlaybackState {
	if p.Paused {
		return p
	}
	pos := p.Elapsed(now)
	p.Paused = true
	p.PausedPosition = &pos
	p.ChangedBy = by
	return p
}

// Resume moves StartTime so that now-StartTime equals the paused position.
func (p PlaybackState) Resume(now time.Time, by string) PlaybackState {
	if !p.Paused {
		return p
	}
	pos := p.Elapsed(now)
	p.StartTime = now.UnixMilli() - int64(pos*1000)
	p.Paused = false
	p.PausedPosition = nil
	p.ChangedBy = by
	return p
}

func (p PlaybackState) Seek(now time.Time, target float64, by string) (PlaybackState, error) {
	if target < 0 {
		return p, ErrNegativePosition
	}
	p.StartTime = now.UnixMilli() - int64(target*1000)
	if p.Paused {
		p.PausedPosition = &target
	} else {
		p.PausedPosition = nil
	}
	p.ChangedBy = by
	return p, nil
}

// Restart rewinds the same song to zero, keeping the paused flag.
func (p PlaybackState) Restart(now time.Time, by string) PlaybackState {
	p.StartTime = now.UnixMilli()
	if p.Paused {
		zero := 0.0
		p.PausedPosition = &zero
	} else {
		p.PausedPosition = nil
	}
	p.ChangedBy = by
	return p
}

// PreviousFrom picks the history entry "previous" should jump to, given the
// newest-first history. Only the top entry is skipped when it is the current
// song.
func PreviousFrom(history []HistoryEntry, currentSongID string) (HistoryEntry, bool) {
	if len(history) == 0 {
		return HistoryEntry{}, false
	}
	prev := history[0]
	if prev.SongID == currentSongID {
		if len(history) < 2 {
			return HistoryEntry{}, false
		}
		prev = history[1]
	}
	return prev, true
}
