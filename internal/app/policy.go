package app

import "github.com/dkeye/syncroom/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose send queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
}

// SimplePolicy kicks slow members; they re-join with a fresh state snapshot.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction {
	return KickMember
}
