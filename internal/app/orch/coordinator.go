// Package orch holds the room session coordinator: the single authority over
// each room's queue, playback timeline and recent-message cache.
//
// Every room is owned by one actor goroutine. Public methods hand a closure
// to the actor and return once it ran, so a room's state is only ever
// touched sequentially. Store I/O runs on the room's persistence lane and
// re-enters the actor through a posted continuation.
package orch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

const (
	DefaultCacheSize      = 50
	DefaultHistoryLimit   = 50
	DefaultPersistTimeout = 10 * time.Second
	DefaultInboxSize      = 256
	DefaultLaneSize       = 1024
)

var (
	ErrNoRoom      = errors.New("room not found")
	ErrRoomClosed  = errors.New("room closed")
	ErrInvalidSong = errors.New("invalid song")
	ErrInvalidUser = errors.New("invalid user")
	ErrInvalidArg  = errors.New("invalid argument")
)

type Options struct {
	CacheSize      int
	HistoryLimit   int
	PersistTimeout time.Duration
	// IdleTTL is how long a room with no subscribers survives; 0 keeps rooms
	// for the process lifetime.
	IdleTTL   time.Duration
	InboxSize int
	LaneSize  int
	Now       func() time.Time
	NewID     func() string
}

func (o *Options) withDefaults() {
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = DefaultPersistTimeout
	}
	if o.InboxSize <= 0 {
		o.InboxSize = DefaultInboxSize
	}
	if o.LaneSize <= 0 {
		o.LaneSize = DefaultLaneSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

type Coordinator struct {
	transport core.Transport
	messages  core.MessageStore
	history   core.HistoryStore
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu    sync.Mutex
	rooms map[domain.RoomID]*room

	// pending counts lane jobs and continuations not yet finished.
	pending atomic.Int64
}

func New(transport core.Transport, messages core.MessageStore, history core.HistoryStore, opts Options) *Coordinator {
	opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		transport: transport,
		messages:  messages,
		history:   history,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[domain.RoomID]*room),
	}
}

func (c *Coordinator) now() time.Time { return c.opts.Now() }

// actor returns the room's actor, creating it when create is set.
func (c *Coordinator) actor(id domain.RoomID, create bool) (*room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.rooms[id]; ok {
		return r, true
	}
	if !create || c.ctx.Err() != nil {
		return nil, false
	}
	r := newRoom(c, id)
	c.rooms[id] = r
	c.wg.Go(r.run)
	c.wg.Go(r.runLane)
	metrics.ActiveRooms.Inc()
	log.Info().Str("module", "orch").Str("room", string(id)).Msg("room created")
	return r, true
}

// do runs fn on the room's actor and waits for it, marking the room active.
func (c *Coordinator) do(ctx context.Context, id domain.RoomID, create bool, fn func(*room)) error {
	return c.send(ctx, id, create, func(r *room) {
		r.touch()
		fn(r)
	})
}

func (c *Coordinator) send(ctx context.Context, id domain.RoomID, create bool, fn func(*room)) error {
	// A room evicted between lookup and delivery is retried once on a
	// fresh actor.
	for attempt := 0; attempt < 2; attempt++ {
		r, ok := c.actor(id, create)
		if !ok {
			return ErrNoRoom
		}
		finished := make(chan struct{})
		select {
		case r.inbox <- func(r *room) { defer close(finished); fn(r) }:
		case <-r.done:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-finished:
			return nil
		case <-r.done:
			select {
			case <-finished:
				return nil
			default:
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrRoomClosed
}

// Drain waits until every lane job and continuation issued so far has run.
func (c *Coordinator) Drain(ctx context.Context) error {
	t := time.NewTicker(2 * time.Millisecond)
	defer t.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Close stops every actor and lane. Callers wanting pending writes to land
// should Drain first.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
	c.mu.Lock()
	n := len(c.rooms)
	c.rooms = make(map[domain.RoomID]*room)
	c.mu.Unlock()
	metrics.ActiveRooms.Sub(float64(n))
	log.Info().Str("module", "orch").Int("rooms", n).Msg("coordinator stopped")
}

// RoomCount is the number of rooms holding live state.
func (c *Coordinator) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// Snapshot is a copy of one room's state.
type Snapshot struct {
	Room     domain.RoomID         `json:"roomId"`
	Queue    []domain.QueueEntry   `json:"queue"`
	Playback *domain.PlaybackState `json:"playback"`
	Messages []domain.Message      `json:"messages"`
}

func (c *Coordinator) Snapshot(ctx context.Context, id domain.RoomID) (Snapshot, error) {
	var s Snapshot
	err := c.send(ctx, id, false, func(r *room) { s = r.snapshot() })
	return s, err
}
