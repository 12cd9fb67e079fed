package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/metrics"
)

const writeWait = 5 * time.Second

// writePump owns all writes to the socket. Cancelling ctx closes the
// connection, which also ends readPump.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, sess core.MemberSession, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Hub.Disconnect(sid, sess)
		if ctl.limiter != nil {
			ctl.limiter.Forget(sid)
		}
		metrics.ConnectedSessions.Dec()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, sid, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(sid, "bad_payload")
		return
	}
	label := env.Type
	defer func() { metrics.EventsReceived.WithLabelValues(label).Inc() }()

	switch env.Type {
	case core.EventJoinRoom:
		ctl.handleJoin(ctx, sid, data)
	case core.EventSendMessage:
		ctl.handleSendMessage(ctx, sid, data)
	case core.EventToggleReaction:
		ctl.handleToggleReaction(ctx, sid, data)
	case core.EventEditMessage:
		ctl.handleEditMessage(ctx, sid, data)
	case core.EventSyncUpdate:
		ctl.handleSyncUpdate(ctx, sid, data)
	case core.EventQueueAdd:
		ctl.handleQueueAdd(ctx, sid, data)
	case core.EventQueueRemove:
		ctl.handleQueueRemove(ctx, sid, data)
	case core.EventQueueReorder:
		ctl.handleQueueReorder(ctx, sid, data)
	case core.EventPlayNext:
		ctl.handlePlayNext(ctx, sid, data)
	case core.EventPlayPrevious, core.EventPauseSync, core.EventResumeSync, core.EventSeekSync:
		ctl.handleTimeline(ctx, sid, env.Type, data)
	case core.EventStopSync:
		ctl.handleStop(ctx, sid, data)
	case eventPing:
		ctl.handlePing(sid)
	case eventRename:
		ctl.handleRename(sid, data)
	case eventWhoAmI:
		ctl.handleWhoAmI(sid)
	default:
		label = "unknown"
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(sid, "unknown_event")
	}
}

func (ctl *SignalWSController) sendError(sid core.SessionID, reason string) {
	ctl.Hub.Unicast(sid, core.EventError, errorPayload{Error: reason})
}

type errorPayload struct {
	Error string `json:"error"`
}
