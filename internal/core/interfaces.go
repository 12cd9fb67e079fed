package core

import "github.com/dkeye/syncroom/internal/domain"

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view of a session for the REST API.
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomService is the subscriber set of one room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)
	// Broadcast sends data to every member except the exclude session
	// (empty exclude reaches everyone).
	Broadcast(exclude SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

type RoomManager interface {
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo

	// Attach and Detach change membership atomically with the room table,
	// Detach dropping the room once its last member leaves.
	Attach(id domain.RoomID, sid SessionID, ms MemberSession)
	Detach(id domain.RoomID, sid SessionID)
}

// Transport is the publish/subscribe fabric the coordinator emits through.
// Delivery is at-most-once and ordered per connection.
type Transport interface {
	Subscribe(sid SessionID, room domain.RoomID) error
	Broadcast(room domain.RoomID, event string, payload any, exclude SessionID)
	Unicast(sid SessionID, event string, payload any)
	// OnDisconnect registers fn for sid's current subscription. It runs once,
	// when the session disconnects or moves to another room.
	OnDisconnect(sid SessionID, fn func())
	MemberCount(room domain.RoomID) int
}
