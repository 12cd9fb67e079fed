package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

// Enqueue appends song to the room's queue under a fresh queue id and
// broadcasts the whole queue.
func (c *Coordinator) Enqueue(ctx context.Context, id domain.RoomID, song domain.Song, addedBy string) (domain.QueueEntry, error) {
	if err := song.Validate(); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("%w: %w", ErrInvalidSong, err)
	}
	if err := domain.ValidateUsername(addedBy); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	entry := domain.QueueEntry{QueueID: c.opts.NewID(), Song: song, AddedBy: addedBy}
	err := c.do(ctx, id, true, func(r *room) {
		r.queue = append(r.queue, entry)
		r.broadcast(core.EventQueueUpdated, r.queueCopy())
	})
	return entry, err
}

// DequeueAt removes the entry at index. Out of range indexes and unknown
// rooms are ignored.
func (c *Coordinator) DequeueAt(ctx context.Context, id domain.RoomID, index int) error {
	err := c.do(ctx, id, false, func(r *room) {
		if index < 0 || index >= len(r.queue) {
			log.Debug().Str("module", "orch").Str("room", string(id)).Int("index", index).Msg("dequeue out of range")
			return
		}
		r.queue = append(r.queue[:index:index], r.queue[index+1:]...)
		r.broadcast(core.EventQueueUpdated, r.queueCopy())
	})
	return ignoreMissing(err)
}

// Reorder replaces the queue with the caller's order and tells everyone but
// the caller. The order must be a permutation of the current queue ids;
// entries keep their server-side content. A stale order is dropped and the
// caller gets the authoritative queue back.
func (c *Coordinator) Reorder(ctx context.Context, sid core.SessionID, id domain.RoomID, order []domain.QueueEntry) error {
	err := c.do(ctx, id, false, func(r *room) {
		if !domain.IsPermutationOf(order, r.queue) {
			log.Debug().Str("module", "orch").Str("room", string(id)).Str("sid", string(sid)).Msg("stale reorder dropped")
			r.c.transport.Unicast(sid, core.EventQueueUpdated, r.queueCopy())
			return
		}
		byID := make(map[string]domain.QueueEntry, len(r.queue))
		for _, e := range r.queue {
			byID[e.QueueID] = e
		}
		next := make([]domain.QueueEntry, 0, len(order))
		for _, e := range order {
			next = append(next, byID[e.QueueID])
		}
		r.queue = next
		r.c.transport.Broadcast(r.id, core.EventQueueUpdated, r.queueCopy(), sid)
	})
	return ignoreMissing(err)
}

// ignoreMissing turns "room does not exist" into a silent no-op.
func ignoreMissing(err error) error {
	if errors.Is(err, ErrNoRoom) {
		return nil
	}
	return err
}
