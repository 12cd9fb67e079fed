package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

// Run sweeps idle rooms every interval until ctx is done. It returns at once
// when eviction is disabled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	if c.opts.IdleTTL <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Sweep(ctx); n > 0 {
				log.Info().Str("module", "orch").Int("evicted", n).Msg("idle rooms swept")
			}
		}
	}
}

// Sweep evicts rooms without subscribers or pending persistence work that
// have been idle for IdleTTL, and reports how many went.
func (c *Coordinator) Sweep(ctx context.Context) int {
	if c.opts.IdleTTL <= 0 {
		return 0
	}
	c.mu.Lock()
	ids := make([]domain.RoomID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	evicted := 0
	for _, id := range ids {
		var gone bool
		err := c.send(ctx, id, false, func(r *room) {
			if r.pending.Load() > 0 || c.transport.MemberCount(r.id) > 0 || r.idleFor(c.now()) < c.opts.IdleTTL {
				return
			}
			c.mu.Lock()
			if c.rooms[r.id] == r {
				delete(c.rooms, r.id)
			}
			c.mu.Unlock()
			r.evicted = true
			gone = true
		})
		if err != nil {
			continue
		}
		if gone {
			evicted++
			metrics.ActiveRooms.Dec()
			log.Debug().Str("module", "orch").Str("room", string(id)).Msg("room evicted")
		}
	}
	return evicted
}
