package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

var ErrNoSession = errors.New("no session bound")

// Envelope is the wire shape of every server -> client event.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub is the room transport layer: it groups bound sessions by room and
// fans encoded events out to them. It implements core.Transport.
type Hub struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
}

func NewHub(reg *Registry, rooms core.RoomManager, policy Policy) *Hub {
	return &Hub{Registry: reg, Rooms: rooms, Policy: policy}
}

var _ core.Transport = (*Hub)(nil)

// Bind attaches a new connection to sid, replacing any older one.
func (h *Hub) Bind(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	room, handlers := h.Registry.BindSignal(sid, sess, cancel)
	if room != "" {
		h.leave(sid, room)
	}
	for _, fn := range handlers {
		fn()
	}
}

// Subscribe moves sid into room; a session is subscribed to one room at a time.
// Disconnect handlers belong to the current subscription: moving to another
// room fires them, subscribing again to the same room drops them.
func (h *Hub) Subscribe(sid core.SessionID, room domain.RoomID) error {
	session, ok := h.Registry.GetSession(sid)
	if !ok {
		return ErrNoSession
	}
	if from, _, ok := h.Registry.RoomOf(sid); ok {
		handlers := h.Registry.TakeDisconnectHandlers(sid)
		if from == room {
			return nil
		}
		h.leave(sid, from)
		for _, fn := range handlers {
			fn()
		}
		log.Info().Str("module", "app.hub").Str("sid", string(sid)).Str("from_room", string(from)).Msg("left room")
	}
	h.Rooms.Attach(room, sid, session)
	h.Registry.UpdateRoom(sid, room)
	log.Info().Str("module", "app.hub").Str("sid", string(sid)).Str("room", string(room)).Msg("subscribed")
	return nil
}

func (h *Hub) Broadcast(room domain.RoomID, event string, payload any, exclude core.SessionID) {
	rs, ok := h.Rooms.Get(room)
	if !ok {
		return
	}
	frame, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("event", event).Msg("encode broadcast")
		return
	}
	res := rs.Broadcast(exclude, frame)
	metrics.EventsSent.WithLabelValues(event).Add(float64(res.SendTo))
	log.Debug().Str("module", "app.hub").Str("room", string(room)).Str("event", event).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	for _, slow := range res.Dropped {
		h.onBackPressure(rs, slow)
	}
}

func (h *Hub) Unicast(sid core.SessionID, event string, payload any) {
	session, ok := h.Registry.GetSession(sid)
	if !ok {
		return
	}
	frame, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("event", event).Msg("encode unicast")
		return
	}
	if err := session.Signal().TrySend(frame); err != nil {
		room, _, _ := h.Registry.RoomOf(sid)
		rs, _ := h.Rooms.Get(room)
		h.onBackPressure(rs, sid)
		return
	}
	metrics.EventsSent.WithLabelValues(event).Inc()
}

func (h *Hub) OnDisconnect(sid core.SessionID, fn func()) {
	if !h.Registry.AddDisconnectHandler(sid, fn) {
		log.Warn().Str("module", "app.hub").Str("sid", string(sid)).Msg("disconnect handler for unknown session")
	}
}

func (h *Hub) MemberCount(room domain.RoomID) int {
	rs, ok := h.Rooms.Get(room)
	if !ok {
		return 0
	}
	return rs.MemberCount()
}

// Disconnect is called by the adapter once a connection is gone. A stale
// session (already replaced by a newer connection with the same sid) only
// releases its own resources.
func (h *Hub) Disconnect(sid core.SessionID, session core.MemberSession) {
	room, handlers, ok := h.Registry.Unbind(sid, session)
	if !ok {
		return
	}
	if room != "" {
		h.leave(sid, room)
	}
	for _, fn := range handlers {
		fn()
	}
	log.Info().Str("module", "app.hub").Str("sid", string(sid)).Str("room", string(room)).Msg("disconnected")
}

// Kick drops sid's connection; cleanup follows through Disconnect.
func (h *Hub) Kick(sid core.SessionID) {
	if room, _, ok := h.Registry.RoomOf(sid); ok {
		h.leave(sid, room)
		h.Registry.RemoveRoom(sid)
	}
	h.Registry.Cancel(sid)
}

func (h *Hub) List() []core.RoomInfo {
	return h.Rooms.List()
}

func (h *Hub) leave(sid core.SessionID, room domain.RoomID) {
	h.Rooms.Detach(room, sid)
}

func (h *Hub) onBackPressure(rs core.RoomService, sid core.SessionID) {
	metrics.FramesDropped.Inc()
	if h.Policy == nil {
		return
	}
	switch h.Policy.OnBackPressure(rs, sid) {
	case KickMember:
		log.Warn().Str("module", "app.hub").Str("sid", string(sid)).Msg("kicking slow member")
		h.Kick(sid)
	case MarkSlow, DropFrame, NoAction:
	}
}

func encode(event string, payload any) (core.Frame, error) {
	return json.Marshal(Envelope{Type: event, Data: payload})
}
