package session

import (
	"fmt"
	"time"
)

// Event is emitted to subscribers. The set of implementations is closed.
type Event interface {
	event()
}

// SessionAuthenticated fires when the server accepts the token.
type SessionAuthenticated struct {
	UserID   string
	Username string
}

// AuthFailed fires when the token is rejected or cannot be decoded. The token has
// already been cleared; the session stays Disconnected until a new one is supplied.
type AuthFailed struct {
	Reason string
	Err    error
}

type RoomJoined struct {
	RoomID string
}

// RoomJoinFailed leaves the session Authenticated.
type RoomJoinFailed struct {
	RoomID string
	Reason string
}

type MessageReceived struct {
	RoomID    string
	MessageID string
	UserID    string
	Username  string
	Content   string
	Timestamp time.Time
}

// MessageAcked fires when a pending send is confirmed. Latency is never negative.
type MessageAcked struct {
	LocalID   string
	RoomID    string
	MessageID string
	Latency   time.Duration
}

// MessageDropped fires for a pending send that will never be acknowledged: the
// channel closed under it, the ack timeout elapsed, or the session logged out.
type MessageDropped struct {
	LocalID string
	RoomID  string
	Reason  string
}

type PresenceChanged struct {
	Joined   bool
	RoomID   string
	UserID   string
	Username string
}

// ConnectionStatusChanged fires on every state transition.
type ConnectionStatusChanged struct {
	State    ConnectionState
	Previous ConnectionState
}

// ReconnectScheduled fires when the reconnect policy asks for another attempt.
type ReconnectScheduled struct {
	Attempt int
	Delay   time.Duration
}

// RoomListInvalidated relays the server's hint that rooms were created.
type RoomListInvalidated struct {
	RoomID string
	Name   string
}

// ServerError carries an error frame that is not the answer to a join or auth.
type ServerError struct {
	Code    int
	Message string
}

func (SessionAuthenticated) event()    {}
func (AuthFailed) event()              {}
func (RoomJoined) event()              {}
func (RoomJoinFailed) event()          {}
func (MessageReceived) event()         {}
func (MessageAcked) event()            {}
func (MessageDropped) event()          {}
func (PresenceChanged) event()         {}
func (ConnectionStatusChanged) event() {}
func (ReconnectScheduled) event()      {}
func (RoomListInvalidated) event()     {}
func (ServerError) event()             {}

func eventName(ev Event) string {
	return fmt.Sprintf("%T", ev)
}
