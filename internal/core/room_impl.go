package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/domain"
)

// roomImpl is a threadsafe in-memory subscriber set.
// It never closes adapter-owned resources.
type roomImpl struct {
	id    domain.RoomID
	mu    sync.RWMutex
	bySID map[SessionID]MemberSession
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Broadcast(exclude SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if exclude != "" && sid == exclude {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	return res
}
