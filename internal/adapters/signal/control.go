package signal

import "github.com/dkeye/syncroom/internal/core"

const (
	eventPing   = "ping"
	eventPong   = "pong"
	eventRename = "rename"
	eventWhoAmI = "whoami"
)

func (ctl *SignalWSController) handlePing(sid core.SessionID) {
	ctl.Hub.Unicast(sid, eventPong, nil)
}
