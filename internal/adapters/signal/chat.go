package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

func (ctl *SignalWSController) handleSendMessage(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		ID       string           `json:"id"`
		Text     string           `json:"text"`
		ReplyTo  *domain.ReplyRef `json:"replyTo"`
		SongCard *domain.Song     `json:"songCard"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	if ctl.limiter != nil && !ctl.limiter.Allow(sid) {
		metrics.RateLimitHits.WithLabelValues(core.EventSendMessage).Inc()
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("chat rate limited")
		ctl.sendError(sid, "rate_limited")
		return
	}
	msg := domain.Message{
		ID:       p.ID,
		Author:   ctl.identity(sid, p.User),
		Text:     p.Text,
		ReplyTo:  p.ReplyTo,
		SongCard: p.SongCard,
	}
	ctl.report(sid, core.EventSendMessage, ctl.Rooms.PostMessage(ctx, room, msg))
}

func (ctl *SignalWSController) handleToggleReaction(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		MessageID string `json:"messageId"`
		Emoji     string `json:"emoji"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	author := ctl.identity(sid, p.User)
	ctl.report(sid, core.EventToggleReaction, ctl.Rooms.ToggleReaction(ctx, room, p.MessageID, p.Emoji, author))
}

func (ctl *SignalWSController) handleEditMessage(ctx context.Context, sid core.SessionID, data []byte) {
	var p struct {
		roomRef
		MessageID string `json:"messageId"`
		NewText   string `json:"newText"`
	}
	room, ok := ctl.decode(sid, data, &p, &p.roomRef)
	if !ok {
		return
	}
	editor := ctl.identity(sid, p.User)
	ctl.report(sid, core.EventEditMessage, ctl.Rooms.EditMessage(ctx, room, p.MessageID, p.NewText, editor))
}
