package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

type whoAmIPayload struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Room     domain.RoomID `json:"room,omitempty"`
}

func (ctl *SignalWSController) handleRename(sid core.SessionID, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	if err := ctl.Hub.Registry.UpdateUsername(sid, p.Name); err != nil {
		ctl.sendError(sid, "invalid_name")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(sid)
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID) {
	ctl.Hub.Unicast(sid, eventWhoAmI, ctl.whoAmI(sid))
}

func (ctl *SignalWSController) whoAmI(sid core.SessionID) whoAmIPayload {
	user := ctl.Hub.Registry.GetOrCreateUser(sid)
	p := whoAmIPayload{ID: user.ID, Username: ctl.Hub.Registry.Username(sid)}
	if room, _, ok := ctl.Hub.Registry.RoomOf(sid); ok {
		p.Room = room
	}
	return p
}

// identity is the name to act under: the caller's own claim when given,
// otherwise the session's display name.
func (ctl *SignalWSController) identity(sid core.SessionID, claimed string) string {
	if claimed != "" {
		return claimed
	}
	return ctl.Hub.Registry.Username(sid)
}
