package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/core/mocks"
	"github.com/dkeye/syncroom/internal/domain"
)

func playing(song domain.Song, now time.Time) domain.PlaybackState {
	return domain.NewPlayback("", song, "", now)
}

func TestSetPlaybackRecordsSongChangesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)

	var recorded []string
	history.EXPECT().
		Append(gomock.Any(), domain.RoomID("r"), gomock.Any(), "alice").
		DoAndReturn(func(_ context.Context, room domain.RoomID, song domain.Song, by string) (*domain.HistoryEntry, error) {
			recorded = append(recorded, song.ID)
			return &domain.HistoryEntry{ID: "h", RoomID: room, SongID: song.ID, PlayedBy: by}, nil
		}).
		Times(2)

	h := newHarnessWith(t, Options{}, nil, history)
	ctx := context.Background()
	now := h.clock.Now()

	require.NoError(t, h.c.SetPlayback(ctx, "r", playing(songA(), now), "alice"))
	seeked, err := playing(songA(), now).Seek(now, 30, "alice")
	require.NoError(t, err)
	require.NoError(t, h.c.SetPlayback(ctx, "r", seeked, "alice"))
	require.NoError(t, h.c.SetPlayback(ctx, "r", playing(songB(), now), "alice"))
	h.drain(t)

	assert.Equal(t, []string{"A", "B"}, recorded)
	assert.Len(t, h.tr.named(core.EventSyncStateUpdated), 3)
	assert.Len(t, h.tr.named(core.EventHistoryEntry), 2)

	s := h.snapshot(t, "r")
	assert.Equal(t, "B", s.Playback.SongID)
	assert.Equal(t, domain.RoomID("r"), s.Playback.RoomID)
	assert.Equal(t, "alice", s.Playback.ChangedBy)
}

func TestSetPlaybackNormalizesPausedState(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	start := h.clock.Now()
	h.clock.Advance(7 * time.Second)

	update := playing(songA(), start)
	update.Paused = true
	require.NoError(t, h.c.SetPlayback(ctx, "r", update, "alice"))

	s := h.snapshot(t, "r")
	require.NotNil(t, s.Playback.PausedPosition)
	assert.InDelta(t, 7.0, *s.Playback.PausedPosition, 1e-9)

	pos := 12.0
	update = playing(songA(), start)
	update.PausedPosition = &pos
	require.NoError(t, h.c.SetPlayback(ctx, "r", update, "alice"))
	assert.Nil(t, h.snapshot(t, "r").Playback.PausedPosition)
}

func TestSetPlaybackRejectsEmptySong(t *testing.T) {
	h := newHarness(t, Options{})
	err := h.c.SetPlayback(context.Background(), "r", domain.PlaybackState{}, "alice")
	assert.ErrorIs(t, err, ErrInvalidSong)
	assert.Equal(t, 0, h.c.RoomCount())
}

func TestHistoryFailureDoesNotBlockPlayback(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	history.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("disk full"))

	h := newHarnessWith(t, Options{}, nil, history)
	require.NoError(t, h.c.SetPlayback(context.Background(), "r", playing(songA(), h.clock.Now()), "alice"))
	h.drain(t)

	assert.Equal(t, "A", h.snapshot(t, "r").Playback.SongID)
	assert.Empty(t, h.tr.named(core.EventHistoryEntry))
}

func TestLanePanicIsRecovered(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	history.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.RoomID, domain.Song, string) (*domain.HistoryEntry, error) {
			panic("boom")
		})

	h := newHarnessWith(t, Options{}, nil, history)
	ctx := context.Background()
	require.NoError(t, h.c.SetPlayback(ctx, "r", playing(songA(), h.clock.Now()), "alice"))
	h.drain(t)

	_, err := h.c.Enqueue(ctx, "r", songB(), "alice")
	require.NoError(t, err)
	assert.Len(t, h.snapshot(t, "r").Queue, 1)
}

func TestStop(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.c.SetPlayback(ctx, "r", playing(songA(), h.clock.Now()), "alice"))
	require.NoError(t, h.c.Stop(ctx, "r"))
	assert.Nil(t, h.snapshot(t, "r").Playback)

	h.tr.reset()
	require.NoError(t, h.c.Stop(ctx, "ghost"))
	ev, ok := h.tr.last(core.EventSyncStopped)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("ghost"), ev.Room)
	assert.Equal(t, 1, h.c.RoomCount())
}

func TestPauseResumeSeek(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.c.SetPlayback(ctx, "r", playing(songA(), h.clock.Now()), "alice"))
	h.clock.Advance(10 * time.Second)

	require.NoError(t, h.c.Pause(ctx, "r", "bob"))
	p := h.snapshot(t, "r").Playback
	require.True(t, p.Paused)
	require.NotNil(t, p.PausedPosition)
	assert.InDelta(t, 10.0, *p.PausedPosition, 1e-9)
	assert.Equal(t, "bob", p.ChangedBy)

	h.clock.Advance(5 * time.Second)
	assert.InDelta(t, 10.0, p.Elapsed(h.clock.Now()), 1e-9)

	require.NoError(t, h.c.Resume(ctx, "r", "carol"))
	p = h.snapshot(t, "r").Playback
	assert.False(t, p.Paused)
	assert.Nil(t, p.PausedPosition)
	assert.Equal(t, h.clock.Now().UnixMilli()-10_000, p.StartTime)

	require.NoError(t, h.c.Seek(ctx, "r", 42, "dave"))
	p = h.snapshot(t, "r").Playback
	assert.InDelta(t, 42.0, p.Elapsed(h.clock.Now()), 1e-9)
	assert.Equal(t, "dave", p.ChangedBy)

	assert.ErrorIs(t, h.c.Seek(ctx, "r", -1, "dave"), ErrInvalidArg)
}

func TestPauseWithoutPlaybackIsNoop(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	_, err := h.c.Enqueue(ctx, "r", songA(), "alice")
	require.NoError(t, err)
	h.tr.reset()

	require.NoError(t, h.c.Pause(ctx, "r", "bob"))
	require.NoError(t, h.c.Resume(ctx, "missing", "bob"))
	assert.Empty(t, h.tr.named(core.EventSyncStateUpdated))
}

func TestPrevious(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	_, err := h.c.Enqueue(ctx, "r", songA(), "alice")
	require.NoError(t, err)
	_, err = h.c.Enqueue(ctx, "r", songB(), "alice")
	require.NoError(t, err)
	require.NoError(t, h.c.Advance(ctx, "r", ""))
	h.clock.Advance(time.Second)
	require.NoError(t, h.c.Advance(ctx, "r", "A"))
	h.drain(t)

	t.Run("early in the song goes back in history", func(t *testing.T) {
		h.clock.Advance(time.Second)
		require.NoError(t, h.c.Previous(ctx, "r", "bob"))
		h.drain(t)

		p := h.snapshot(t, "r").Playback
		assert.Equal(t, "A", p.SongID)
		assert.Equal(t, "bob", p.ChangedBy)
		assert.Equal(t, h.clock.Now().UnixMilli(), p.StartTime)

		entries, err := h.store.List(ctx, "r", 1)
		require.NoError(t, err)
		assert.Equal(t, "A", entries[0].SongID)
	})

	t.Run("late in the song restarts it", func(t *testing.T) {
		h.clock.Advance(5 * time.Second)
		require.NoError(t, h.c.Previous(ctx, "r", "carol"))
		h.drain(t)

		p := h.snapshot(t, "r").Playback
		assert.Equal(t, "A", p.SongID)
		assert.Equal(t, "carol", p.ChangedBy)
		assert.Equal(t, h.clock.Now().UnixMilli(), p.StartTime)
	})
}
