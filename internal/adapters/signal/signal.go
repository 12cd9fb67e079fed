// Package signal is the WebSocket adapter: it binds each browser connection
// to a session, decodes inbound events and hands them to the room
// coordinator. Outbound traffic goes through the app hub.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/app"
	"github.com/dkeye/syncroom/internal/app/orch"
	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Coordinator is the slice of the room coordinator the adapter drives.
type Coordinator interface {
	Join(ctx context.Context, sid core.SessionID, id domain.RoomID) error
	PostMessage(ctx context.Context, id domain.RoomID, msg domain.Message) error
	ToggleReaction(ctx context.Context, id domain.RoomID, messageID, emoji, author string) error
	EditMessage(ctx context.Context, id domain.RoomID, messageID, newText, editor string) error
	SetPlayback(ctx context.Context, id domain.RoomID, update domain.PlaybackState, actor string) error
	Enqueue(ctx context.Context, id domain.RoomID, song domain.Song, addedBy string) (domain.QueueEntry, error)
	DequeueAt(ctx context.Context, id domain.RoomID, index int) error
	Reorder(ctx context.Context, sid core.SessionID, id domain.RoomID, order []domain.QueueEntry) error
	Advance(ctx context.Context, id domain.RoomID, expected string) error
	Previous(ctx context.Context, id domain.RoomID, actor string) error
	Pause(ctx context.Context, id domain.RoomID, actor string) error
	Resume(ctx context.Context, id domain.RoomID, actor string) error
	Seek(ctx context.Context, id domain.RoomID, position float64, actor string) error
	Stop(ctx context.Context, id domain.RoomID) error
}

var _ Coordinator = (*orch.Coordinator)(nil)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	// ChatRate messages per ChatInterval per session; 0 disables limiting.
	ChatRate     int
	ChatInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ChatInterval <= 0 {
		o.ChatInterval = 10 * time.Second
	}
}

type SignalWSController struct {
	Hub     *app.Hub
	Rooms   Coordinator
	limiter *RoomRateLimiter
	opts    Options
}

func NewSignalWSController(hub *app.Hub, rooms Coordinator, opts Options) *SignalWSController {
	opts.withDefaults()
	ctl := &SignalWSController{Hub: hub, Rooms: rooms, opts: opts}
	if opts.ChatRate > 0 {
		ctl.limiter = NewRoomRateLimiter(opts.ChatRate, opts.ChatInterval)
	}
	return ctl
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the connection until it
// drops, ctx ends or a newer connection takes over the same client token.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	if sid == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	user := ctl.Hub.Registry.GetOrCreateUser(sid)
	sess := core.NewMemberSession(domain.NewMember(user), conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Hub.Bind(sid, sess, cancel)
	metrics.ConnectedSessions.Inc()

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, sess, conn)
}
