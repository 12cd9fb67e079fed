package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

const queuePlayer = "Queue"

// SetPlayback replaces the room's playback state wholesale and echoes it to
// every subscriber, the sender included. A different song id than before
// is recorded in the play history.
func (c *Coordinator) SetPlayback(ctx context.Context, id domain.RoomID, update domain.PlaybackState, actor string) error {
	if update.SongID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSong, domain.ErrSongIDEmpty)
	}
	if actor != "" {
		if err := domain.ValidateUsername(actor); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUser, err)
		}
		update.ChangedBy = actor
	}
	return c.do(ctx, id, true, func(r *room) {
		update.RoomID = r.id
		r.applyPlayback(update.Normalize(c.now()))
	})
}

// Advance promotes the queue head to now playing. A non-empty expected id
// that no longer matches the current song means the caller is stale and
// nothing happens. An empty queue stops playback.
func (c *Coordinator) Advance(ctx context.Context, id domain.RoomID, expected string) error {
	err := c.do(ctx, id, false, func(r *room) {
		if expected != "" && r.playback != nil && r.playback.SongID != expected {
			log.Debug().Str("module", "orch").Str("room", string(id)).Str("expected", expected).Str("current", r.playback.SongID).Msg("stale advance skipped")
			return
		}
		if len(r.queue) == 0 {
			r.playback = nil
			r.broadcast(core.EventSyncStopped, nil)
			return
		}
		next := r.queue[0]
		r.queue = append(r.queue[:0:0], r.queue[1:]...)
		by := next.AddedBy
		if by == "" {
			by = queuePlayer
		}
		state := domain.NewPlayback(r.id, next.Song, by, c.now())
		r.playback = &state
		r.broadcast(core.EventSyncStateUpdated, r.playbackCopy())
		r.broadcast(core.EventQueueUpdated, r.queueCopy())
		r.recordPlay(next.Song, by)
	})
	return ignoreMissing(err)
}

// Stop clears playback. Subscribers are told even when the room holds no
// state.
func (c *Coordinator) Stop(ctx context.Context, id domain.RoomID) error {
	err := c.do(ctx, id, false, func(r *room) {
		r.playback = nil
		r.broadcast(core.EventSyncStopped, nil)
	})
	if errors.Is(err, ErrNoRoom) {
		c.transport.Broadcast(id, core.EventSyncStopped, nil, "")
		return nil
	}
	return err
}

func (c *Coordinator) Pause(ctx context.Context, id domain.RoomID, actor string) error {
	return c.adjust(ctx, id, func(p domain.PlaybackState) (domain.PlaybackState, error) {
		return p.Pause(c.now(), actor), nil
	})
}

func (c *Coordinator) Resume(ctx context.Context, id domain.RoomID, actor string) error {
	return c.adjust(ctx, id, func(p domain.PlaybackState) (domain.PlaybackState, error) {
		return p.Resume(c.now(), actor), nil
	})
}

// Seek moves the current song to position seconds, playing or paused.
func (c *Coordinator) Seek(ctx context.Context, id domain.RoomID, position float64, actor string) error {
	if position < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidArg, domain.ErrNegativePosition)
	}
	return c.adjust(ctx, id, func(p domain.PlaybackState) (domain.PlaybackState, error) {
		return p.Seek(c.now(), position, actor)
	})
}

// Previous restarts the current song when it is past the restart threshold,
// otherwise jumps back to the last played song from history.
func (c *Coordinator) Previous(ctx context.Context, id domain.RoomID, actor string) error {
	err := c.do(ctx, id, false, func(r *room) {
		if r.playback == nil {
			return
		}
		now := c.now()
		if r.playback.Elapsed(now) > domain.RestartThreshold.Seconds() {
			state := r.playback.Restart(now, actor)
			r.playback = &state
			r.broadcast(core.EventSyncStateUpdated, r.playbackCopy())
			return
		}
		current := r.playback.SongID
		r.persist(func(ctx context.Context) {
			entries, err := c.history.List(ctx, r.id, c.opts.HistoryLimit)
			if err != nil {
				metrics.PersistFailures.WithLabelValues("history_list").Inc()
				log.Error().Err(err).Str("module", "orch").Str("room", string(r.id)).Msg("failed to list history")
				return
			}
			r.post(func(r *room) {
				if r.playback == nil || r.playback.SongID != current {
					return
				}
				prev, ok := domain.PreviousFrom(entries, current)
				if !ok {
					return
				}
				r.applyPlayback(domain.NewPlayback(r.id, prev.Song(), actor, c.now()))
			})
		})
	})
	return ignoreMissing(err)
}

// adjust rewrites the current playback state in place; rooms with nothing
// playing ignore it.
func (c *Coordinator) adjust(ctx context.Context, id domain.RoomID, fn func(domain.PlaybackState) (domain.PlaybackState, error)) error {
	var ferr error
	err := c.do(ctx, id, false, func(r *room) {
		if r.playback == nil {
			return
		}
		next, err := fn(*r.playback)
		if err != nil {
			ferr = err
			return
		}
		r.playback = &next
		r.broadcast(core.EventSyncStateUpdated, r.playbackCopy())
	})
	if ferr != nil {
		return ferr
	}
	return ignoreMissing(err)
}

// applyPlayback swaps in state, broadcasts it and records a song change.
func (r *room) applyPlayback(state domain.PlaybackState) {
	prev := r.playback
	r.playback = &state
	r.broadcast(core.EventSyncStateUpdated, r.playbackCopy())
	if prev == nil || prev.SongID != state.SongID {
		by := state.ChangedBy
		if by == "" {
			by = "Unknown"
		}
		r.recordPlay(state.Song(), by)
	}
}

// recordPlay appends to the play history off the actor and broadcasts the
// stored entry. Failures are logged only.
func (r *room) recordPlay(song domain.Song, playedBy string) {
	metrics.SongChanges.Inc()
	r.persist(func(ctx context.Context) {
		entry, err := r.c.history.Append(ctx, r.id, song, playedBy)
		if err != nil {
			metrics.PersistFailures.WithLabelValues("history_append").Inc()
			log.Error().Err(err).Str("module", "orch").Str("room", string(r.id)).Str("song", song.ID).Msg("failed to log history")
			return
		}
		if entry == nil {
			return
		}
		r.post(func(r *room) {
			r.broadcast(core.EventHistoryEntry, entry)
		})
	})
}
