package orch

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

// room is one room's actor. Fields below the channels belong to the run
// goroutine and are never touched elsewhere.
type room struct {
	id    domain.RoomID
	c     *Coordinator
	inbox chan func(*room)
	lane  chan func(context.Context)
	done  chan struct{}

	// lastActive (unix nanos) is also bumped by disconnect callbacks.
	lastActive atomic.Int64
	// pending mirrors Coordinator.pending for this room only.
	pending atomic.Int64

	queue    []domain.QueueEntry
	playback *domain.PlaybackState
	recent   *recentMessages
	// hydrated is set once recent has been seeded from the message store.
	hydrated bool
	evicted  bool
}

func newRoom(c *Coordinator, id domain.RoomID) *room {
	r := &room{
		id:     id,
		c:      c,
		inbox:  make(chan func(*room), c.opts.InboxSize),
		lane:   make(chan func(context.Context), c.opts.LaneSize),
		done:   make(chan struct{}),
		queue:  []domain.QueueEntry{},
		recent: newRecentMessages(c.opts.CacheSize),
	}
	r.touch()
	return r
}

func (r *room) touch() { r.lastActive.Store(r.c.now().UnixNano()) }

func (r *room) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, r.lastActive.Load()))
}

func (r *room) addPending(n int64) {
	r.pending.Add(n)
	r.c.pending.Add(n)
}

func (r *room) run() {
	defer close(r.done)
	for {
		select {
		case <-r.c.ctx.Done():
			return
		case fn := <-r.inbox:
			r.exec(fn)
			if r.evicted {
				return
			}
		}
	}
}

func (r *room) exec(fn func(*room)) {
	var pc panics.Catcher
	pc.Try(func() { fn(r) })
	if rec := pc.Recovered(); rec != nil {
		metrics.RecoveredPanics.Inc()
		log.Error().Err(rec.AsError()).Str("module", "orch").Str("room", string(r.id)).Msg("room handler panicked")
	}
}

// runLane executes persistence jobs in submission order. After the actor
// stops, queued jobs still run so accepted writes are not lost.
func (r *room) runLane() {
	for {
		select {
		case job := <-r.lane:
			r.runJob(job)
		case <-r.done:
			for {
				select {
				case job := <-r.lane:
					r.runJob(job)
				default:
					return
				}
			}
		}
	}
}

func (r *room) runJob(job func(context.Context)) {
	defer r.addPending(-1)
	ctx, cancel := context.WithTimeout(r.c.ctx, r.c.opts.PersistTimeout)
	defer cancel()
	var pc panics.Catcher
	pc.Try(func() { job(ctx) })
	if rec := pc.Recovered(); rec != nil {
		metrics.RecoveredPanics.Inc()
		log.Error().Err(rec.AsError()).Str("module", "orch").Str("room", string(r.id)).Msg("persistence job panicked")
	}
}

// persist queues job on the lane. Only the actor calls it, and it never
// blocks: with a full lane the job runs on its own goroutine.
func (r *room) persist(job func(context.Context)) {
	r.addPending(1)
	select {
	case r.lane <- job:
	default:
		log.Warn().Str("module", "orch").Str("room", string(r.id)).Msg("persistence lane full, running job out of order")
		r.c.wg.Go(func() { r.runJob(job) })
	}
}

// post hands a continuation back to the actor. Only lane jobs call it, so
// a room with nothing pending receives no posts.
func (r *room) post(fn func(*room)) {
	r.addPending(1)
	wrapped := func(r *room) {
		defer r.addPending(-1)
		fn(r)
	}
	select {
	case r.inbox <- wrapped:
	case <-r.done:
		r.addPending(-1)
	}
}

func (r *room) broadcast(event string, payload any) {
	r.c.transport.Broadcast(r.id, event, payload, "")
}

func (r *room) queueCopy() []domain.QueueEntry {
	return slices.Clone(r.queue)
}

func (r *room) playbackCopy() *domain.PlaybackState {
	if r.playback == nil {
		return nil
	}
	p := *r.playback
	if p.PausedPosition != nil {
		pos := *p.PausedPosition
		p.PausedPosition = &pos
	}
	return &p
}

func (r *room) snapshot() Snapshot {
	return Snapshot{
		Room:     r.id,
		Queue:    r.queueCopy(),
		Playback: r.playbackCopy(),
		Messages: r.recent.Snapshot(),
	}
}

// recentMessages is the bounded read-through cache over the message store.
// Oldest entries fall out first.
type recentMessages struct {
	cap  int
	msgs []domain.Message
}

func newRecentMessages(capacity int) *recentMessages {
	return &recentMessages{cap: capacity, msgs: make([]domain.Message, 0, capacity)}
}

func (c *recentMessages) Len() int { return len(c.msgs) }

func (c *recentMessages) Add(m domain.Message) {
	c.msgs = append(c.msgs, m)
	if over := len(c.msgs) - c.cap; over > 0 {
		c.msgs = slices.Delete(c.msgs, 0, over)
	}
}

// Seed replaces the cache with msgs (oldest first), keeping the newest cap.
func (c *recentMessages) Seed(msgs []domain.Message) {
	c.msgs = c.msgs[:0]
	for _, m := range msgs {
		c.Add(m)
	}
}

func (c *recentMessages) Find(id string) *domain.Message {
	for i := range c.msgs {
		if c.msgs[i].ID == id {
			return &c.msgs[i]
		}
	}
	return nil
}

func (c *recentMessages) Snapshot() []domain.Message {
	out := make([]domain.Message, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Clone()
	}
	return out
}
