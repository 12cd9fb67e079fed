package orch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

type sent struct {
	Room    domain.RoomID
	To      core.SessionID // set for unicasts
	Exclude core.SessionID
	Event   string
	Payload any
}

type fakeTransport struct {
	mu      sync.Mutex
	events  []sent
	members map[domain.RoomID]map[core.SessionID]bool
	onDisc  map[core.SessionID][]func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		members: make(map[domain.RoomID]map[core.SessionID]bool),
		onDisc:  make(map[core.SessionID][]func()),
	}
}

func (f *fakeTransport) Subscribe(sid core.SessionID, room domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[room] == nil {
		f.members[room] = make(map[core.SessionID]bool)
	}
	f.members[room][sid] = true
	return nil
}

func (f *fakeTransport) Broadcast(room domain.RoomID, event string, payload any, exclude core.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sent{Room: room, Exclude: exclude, Event: event, Payload: payload})
}

func (f *fakeTransport) Unicast(sid core.SessionID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sent{To: sid, Event: event, Payload: payload})
}

func (f *fakeTransport) OnDisconnect(sid core.SessionID, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisc[sid] = append(f.onDisc[sid], fn)
}

func (f *fakeTransport) MemberCount(room domain.RoomID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members[room])
}

func (f *fakeTransport) disconnect(sid core.SessionID) {
	f.mu.Lock()
	for _, m := range f.members {
		delete(m, sid)
	}
	handlers := f.onDisc[sid]
	delete(f.onDisc, sid)
	f.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (f *fakeTransport) named(event string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, e := range f.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) to(sid core.SessionID) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, e := range f.events {
		if e.To == sid {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) last(event string) (sent, bool) {
	all := f.named(event)
	if len(all) == 0 {
		return sent{}, false
	}
	return all[len(all)-1], true
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

// memStore is an in-memory MessageStore and HistoryStore.
type memStore struct {
	mu       sync.Mutex
	seq      int
	messages []domain.Message
	history  []domain.HistoryEntry
	now      func() time.Time
}

var errNotFound = errors.New("not found")

func newMemStore(now func() time.Time) *memStore {
	return &memStore{now: now}
}

func (s *memStore) Create(_ context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.ID = fmt.Sprintf("m%d", s.seq)
	msg.Timestamp = s.now()
	msg.Reactions = domain.Reactions{}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *memStore) ListRecent(_ context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.RoomID == room {
			out = append(out, m.Clone())
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) find(id string) int {
	return slices.IndexFunc(s.messages, func(m domain.Message) bool { return m.ID == id })
}

func (s *memStore) Get(_ context.Context, id string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return domain.Message{}, errNotFound
	}
	return s.messages[i].Clone(), nil
}

func (s *memStore) UpdateReactions(_ context.Context, id string, reactions domain.Reactions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return errNotFound
	}
	s.messages[i].Reactions = reactions.Clone()
	return nil
}

func (s *memStore) UpdateText(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return errNotFound
	}
	s.messages[i].Text = text
	s.messages[i].Edited = true
	return nil
}

func (s *memStore) Append(_ context.Context, room domain.RoomID, song domain.Song, playedBy string) (*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e := domain.HistoryEntry{
		ID: fmt.Sprintf("h%d", s.seq), RoomID: room, SongID: song.ID, Platform: song.Platform,
		Title: song.Title, Artist: song.Artist, Thumbnail: song.Thumbnail, PlayedBy: playedBy, PlayedAt: s.now(),
	}
	s.history = append(s.history, e)
	return &e, nil
}

func (s *memStore) List(_ context.Context, room domain.RoomID, limit int) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HistoryEntry
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].RoomID == room {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	c     *Coordinator
	tr    *fakeTransport
	store *memStore
	clock *fakeClock
}

func newHarness(t *testing.T, opts Options) *harness {
	return newHarnessWith(t, opts, nil, nil)
}

// newHarnessWith lets a test swap either store for a mock; nil keeps the
// in-memory one.
func newHarnessWith(t *testing.T, opts Options, messages core.MessageStore, history core.HistoryStore) *harness {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	store := newMemStore(clock.Now)
	if messages == nil {
		messages = store
	}
	if history == nil {
		history = store
	}
	tr := newFakeTransport()
	opts.Now = clock.Now
	c := New(tr, messages, history, opts)
	t.Cleanup(c.Close)
	return &harness{c: c, tr: tr, store: store, clock: clock}
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.c.Drain(ctx))
}

func (h *harness) snapshot(t *testing.T, room domain.RoomID) Snapshot {
	t.Helper()
	s, err := h.c.Snapshot(context.Background(), room)
	require.NoError(t, err)
	return s
}

func songA() domain.Song {
	return domain.Song{ID: "A", Platform: domain.PlatformYouTube, Title: "Song A", Artist: "x", Duration: 180}
}

func songB() domain.Song {
	return domain.Song{ID: "B", Platform: domain.PlatformSpotify, Title: "Song B", Artist: "y", Duration: 200}
}

func queueIDs(q []domain.QueueEntry) []string {
	out := make([]string, len(q))
	for i, e := range q {
		out[i] = e.QueueID
	}
	return out
}
