package app

import (
	"context"
	"sync"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Room         domain.RoomID
	Session      core.MemberSession
	Cancel       context.CancelFunc
	OnDisconnect []func()
}

// Registry tracks live sessions, the room each one is subscribed to and the
// display name chosen per client token.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	users    map[core.SessionID]*domain.User
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		users:    make(map[core.SessionID]*domain.User),
	}
}

func (r *Registry) GetOrCreateUser(sid core.SessionID) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[sid]; ok {
		return u
	}
	u := &domain.User{ID: domain.UserID(sid), Username: domain.DefaultName}
	r.users[sid] = u
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created new user")
	return u
}

func (r *Registry) UpdateUsername(sid core.SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sid]
	if !ok {
		u = &domain.User{ID: domain.UserID(sid), Username: domain.DefaultName}
		r.users[sid] = u
	}
	if err := u.SetUsername(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", name).Msg("updated username")
	return nil
}

// BindSignal registers a fresh connection. A previous connection with the
// same sid (second tab, reconnect) is cancelled, and its room and
// disconnect handlers are handed back for cleanup.
func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) (domain.RoomID, []func()) {
	r.mu.Lock()
	prev, had := r.sessions[sid]
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
	if !had {
		return "", nil
	}
	if prev.Cancel != nil {
		prev.Cancel()
	}
	return prev.Room, prev.OnDisconnect
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind forgets sid if it is still bound to sess and hands back the
// disconnect handlers registered for it.
func (r *Registry) Unbind(sid core.SessionID, sess core.MemberSession) (domain.RoomID, []func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Session != sess {
		return "", nil, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return e.Room, e.OnDisconnect, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Room == "" {
		return "", nil, false
	}
	return entry.Room, entry.Session, true
}

func (r *Registry) UpdateRoom(sid core.SessionID, newRoom domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Room = newRoom
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(newRoom)).Msg("updated room")
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.Room = ""
	}
}

func (r *Registry) AddDisconnectHandler(sid core.SessionID, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.OnDisconnect = append(entry.OnDisconnect, fn)
	return true
}

// TakeDisconnectHandlers removes and returns the handlers registered for sid.
func (r *Registry) TakeDisconnectHandlers(sid core.SessionID) []func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	handlers := entry.OnDisconnect
	entry.OnDisconnect = nil
	return handlers
}

// MembersOfRoom lists the sessions subscribed to id with their current
// display names.
func (r *Registry) MembersOfRoom(id domain.RoomID) []core.MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberDTO, 0)
	for sid, e := range r.sessions {
		if e.Room != id {
			continue
		}
		dto := core.MemberDTO{ID: domain.UserID(sid), Username: domain.DefaultName}
		if u, ok := r.users[sid]; ok {
			dto.Username = u.Username
		}
		out = append(out, dto)
	}
	return out
}

// Username is the display name of sid, DefaultName when it never set one.
func (r *Registry) Username(sid core.SessionID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[sid]; ok {
		return u.Username
	}
	return domain.DefaultName
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
