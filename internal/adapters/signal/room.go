package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/app/orch"
	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

// roomRef is embedded by every room-scoped payload.
type roomRef struct {
	RoomID string `json:"roomId"`
	User   string `json:"user,omitempty"`
}

// decode unmarshals data into p and resolves the room named by ref, which
// must point into p. Failures are reported to sid.
func (ctl *SignalWSController) decode(sid core.SessionID, data []byte, p any, ref *roomRef) (domain.RoomID, bool) {
	if !ctl.unmarshal(sid, data, p) {
		return "", false
	}
	return ctl.resolveRoom(sid, ref.RoomID)
}

func (ctl *SignalWSController) unmarshal(sid core.SessionID, data []byte, p any) bool {
	if err := json.Unmarshal(data, p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad payload")
		ctl.sendError(sid, "bad_payload")
		return false
	}
	return true
}

// resolveRoom validates raw, falling back to the session's current room
// when it is empty.
func (ctl *SignalWSController) resolveRoom(sid core.SessionID, raw string) (domain.RoomID, bool) {
	if raw == "" {
		if current, _, ok := ctl.Hub.Registry.RoomOf(sid); ok {
			return current, true
		}
	}
	id, err := domain.ParseRoomID(raw)
	if err != nil {
		ctl.sendError(sid, "invalid_room")
		return "", false
	}
	return id, true
}

// report turns a coordinator error into a client-visible error event.
func (ctl *SignalWSController) report(sid core.SessionID, op string, err error) {
	if err == nil {
		return
	}
	reason := "internal_error"
	switch {
	case errors.Is(err, orch.ErrInvalidSong):
		reason = "invalid_song"
	case errors.Is(err, orch.ErrInvalidUser):
		reason = "invalid_user"
	case errors.Is(err, orch.ErrInvalidArg):
		reason = "invalid_argument"
	case errors.Is(err, context.Canceled):
		return
	default:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("op", op).Msg("room operation failed")
	}
	ctl.sendError(sid, reason)
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		Name string `json:"name,omitempty"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	if p.RoomID == "" {
		ctl.sendError(sid, "invalid_room")
		return
	}
	if p.Name != "" {
		if err := ctl.Hub.Registry.UpdateUsername(sid, p.Name); err != nil {
			ctl.sendError(sid, "invalid_name")
			return
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(room)).Msg("join")
	ctl.report(sid, core.EventJoinRoom, ctl.Rooms.Join(ctx, sid, room))
}

// handleSyncUpdate takes the whole playback state from the payload; its
// "roomId" and "user" fields double as the room reference.
func (ctl *SignalWSController) handleSyncUpdate(ctx context.Context, sid core.SessionID, data []byte) {
	var state domain.PlaybackState
	if !ctl.unmarshal(sid, data, &state) {
		return
	}
	room, ok := ctl.resolveRoom(sid, string(state.RoomID))
	if !ok {
		return
	}
	actor := ctl.identity(sid, state.ChangedBy)
	ctl.report(sid, core.EventSyncUpdate, ctl.Rooms.SetPlayback(ctx, room, state, actor))
}

func (ctl *SignalWSController) handleQueueAdd(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		Song struct {
			domain.Song
			AddedBy string `json:"addedBy"`
		} `json:"song"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	by := p.Song.AddedBy
	if by == "" {
		by = ctl.identity(sid, p.User)
	}
	_, err := ctl.Rooms.Enqueue(ctx, room, p.Song.Song, by)
	ctl.report(sid, core.EventQueueAdd, err)
}

func (ctl *SignalWSController) handleQueueRemove(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		Index *int `json:"index"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	if p.Index == nil {
		ctl.sendError(sid, "invalid_argument")
		return
	}
	ctl.report(sid, core.EventQueueRemove, ctl.Rooms.DequeueAt(ctx, room, *p.Index))
}

func (ctl *SignalWSController) handleQueueReorder(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		NewQueue []domain.QueueEntry `json:"newQueue"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	ctl.report(sid, core.EventQueueReorder, ctl.Rooms.Reorder(ctx, sid, room, p.NewQueue))
}

func (ctl *SignalWSController) handlePlayNext(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		CurrentSongID string `json:"currentSongId"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	ctl.report(sid, core.EventPlayNext, ctl.Rooms.Advance(ctx, room, p.CurrentSongID))
}

// handleTimeline serves the server-side transport controls.
func (ctl *SignalWSController) handleTimeline(ctx context.Context, sid core.SessionID, event string, data []byte) {
	var p struct {
		roomRef
		Position *float64 `json:"position"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	actor := ctl.identity(sid, p.User)
	var err error
	switch event {
	case core.EventPlayPrevious:
		err = ctl.Rooms.Previous(ctx, room, actor)
	case core.EventPauseSync:
		err = ctl.Rooms.Pause(ctx, room, actor)
	case core.EventResumeSync:
		err = ctl.Rooms.Resume(ctx, room, actor)
	case core.EventSeekSync:
		if p.Position == nil {
			ctl.sendError(sid, "invalid_argument")
			return
		}
		err = ctl.Rooms.Seek(ctx, room, *p.Position, actor)
	}
	ctl.report(sid, event, err)
}

func (ctl *SignalWSController) handleStop(ctx context.Context, sid core.SessionID, data []byte) {
	var p roomRef
	room, ok := ctl.decode(sid, data, &p, &p)
	if !ok {
		return
	}
	ctl.report(sid, core.EventStopSync, ctl.Rooms.Stop(ctx, room))
}
