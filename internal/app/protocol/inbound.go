package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"swiftchat/internal/pkg/errs"
)

// Kind is the discriminant of a server frame.
type Kind string

const (
	KindConnected       Kind = "connected"
	KindAuthResponse    Kind = "auth_response"
	KindRoomJoined      Kind = "room_joined"
	KindMessageSent     Kind = "message_sent"
	KindMessageReceived Kind = "message_received"
	KindChatMessage     Kind = "chat_message"
	KindUserJoined      Kind = "user_joined"
	KindUserLeft        Kind = "user_left"
	KindPong            Kind = "pong"
	KindError           Kind = "error"
	KindRoomCreated     Kind = "room_created"
)

// Inbound is a classified server frame. The set of implementations is closed.
type Inbound interface {
	Kind() Kind
	inbound()
}

// AuthResult answers the auth frame. It arrives as "connected" or "auth_response".
type AuthResult struct {
	Type     Kind
	Success  bool
	UserID   string
	Username string
	Message  string
}

// RoomJoined confirms a join_room request.
type RoomJoined struct {
	RoomID string
	UserID string
}

// MessageSent acknowledges the session's own chat_message.
type MessageSent struct {
	RoomID    string
	MessageID string
	LocalID   string // empty unless the server echoes the client's local id
	Content   string
	Timestamp time.Time
}

// ChatMessage is a message broadcast to the room, as "message_received" or "chat_message".
type ChatMessage struct {
	Type      Kind
	MessageID string
	RoomID    string
	UserID    string
	Username  string
	Content   string
	Timestamp time.Time
}

// Member identifies a user whose presence changed.
type Member struct {
	RoomID   string
	UserID   string
	Username string
}

type UserJoined struct{ Member }

type UserLeft struct{ Member }

type Pong struct{}

// ServerError carries a human-readable failure reported by the server.
type ServerError struct {
	Code    int
	Message string
}

// RoomCreated hints that the room list changed.
type RoomCreated struct {
	RoomID string
	Name   string
}

// Unrecognized is any frame whose discriminant is not one of the known kinds.
type Unrecognized struct {
	Type string
	Raw  []byte
}

func (a AuthResult) Kind() Kind   { return a.Type }
func (RoomJoined) Kind() Kind     { return KindRoomJoined }
func (MessageSent) Kind() Kind    { return KindMessageSent }
func (c ChatMessage) Kind() Kind  { return c.Type }
func (UserJoined) Kind() Kind     { return KindUserJoined }
func (UserLeft) Kind() Kind       { return KindUserLeft }
func (Pong) Kind() Kind           { return KindPong }
func (ServerError) Kind() Kind    { return KindError }
func (RoomCreated) Kind() Kind    { return KindRoomCreated }
func (u Unrecognized) Kind() Kind { return Kind(u.Type) }

func (AuthResult) inbound()   {}
func (RoomJoined) inbound()   {}
func (MessageSent) inbound()  {}
func (ChatMessage) inbound()  {}
func (UserJoined) inbound()   {}
func (UserLeft) inbound()     {}
func (Pong) inbound()         {}
func (ServerError) inbound()  {}
func (RoomCreated) inbound()  {}
func (Unrecognized) inbound() {}

type envelope struct {
	Type    string          `json:"type"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// body holds every field either shape may carry.
type body struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Success   *bool     `json:"success"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	Code      ID        `json:"code"`
	ID        ID        `json:"id"`
	UserID    ID        `json:"user_id"`
	Username  string    `json:"username"`
	RoomID    ID        `json:"room_id"`
	MessageID ID        `json:"message_id"`
	LocalID   string    `json:"local_id"`
	Content   string    `json:"content"`
	Name      string    `json:"name"`
	Timestamp Timestamp `json:"timestamp"`
}

// Decode classifies a raw server frame. A nested data.type wins over the top-level
// type; top-level success and message apply to either shape. Frames that are not JSON
// objects or carry no discriminant fail with errs.ErrProtocolViolation. Unknown kinds
// decode to Unrecognized without error.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.Wrap(errs.ErrProtocolViolation, err)
	}

	var b body
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errs.Wrap(errs.ErrProtocolViolation, err)
	}

	if data := bytes.TrimSpace(env.Data); len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, errs.Wrap(errs.ErrProtocolViolation, err)
		}
	}

	if b.Type == "" {
		return nil, errs.NewError(errs.ErrProtocolViolation)
	}

	success := env.Success
	if success == nil {
		success = b.Success
	}

	message := env.Message
	if message == "" {
		message = b.Message
	}

	switch kind := Kind(b.Type); kind {
	case KindConnected, KindAuthResponse:
		return AuthResult{
			Type:     kind,
			Success:  authSucceeded(kind, success, b.Status),
			UserID:   string(b.UserID),
			Username: b.Username,
			Message:  firstNonEmpty(message, b.Error),
		}, nil

	case KindRoomJoined:
		return RoomJoined{RoomID: string(firstID(b.RoomID, b.ID)), UserID: string(b.UserID)}, nil

	case KindMessageSent:
		return MessageSent{
			RoomID:    string(b.RoomID),
			MessageID: string(firstID(b.MessageID, b.ID)),
			LocalID:   b.LocalID,
			Content:   b.Content,
			Timestamp: b.Timestamp.Time,
		}, nil

	case KindMessageReceived, KindChatMessage:
		return ChatMessage{
			Type:      kind,
			MessageID: string(firstID(b.MessageID, b.ID)),
			RoomID:    string(b.RoomID),
			UserID:    string(b.UserID),
			Username:  b.Username,
			Content:   b.Content,
			Timestamp: b.Timestamp.Time,
		}, nil

	case KindUserJoined:
		return UserJoined{Member{RoomID: string(b.RoomID), UserID: string(b.UserID), Username: b.Username}}, nil

	case KindUserLeft:
		return UserLeft{Member{RoomID: string(b.RoomID), UserID: string(b.UserID), Username: b.Username}}, nil

	case KindPong:
		return Pong{}, nil

	case KindError:
		code, _ := strconv.Atoi(string(b.Code))
		return ServerError{Code: code, Message: firstNonEmpty(message, b.Error, "unknown server error")}, nil

	case KindRoomCreated:
		return RoomCreated{RoomID: string(firstID(b.RoomID, b.ID)), Name: b.Name}, nil

	default:
		return Unrecognized{Type: b.Type, Raw: append([]byte(nil), raw...)}, nil
	}
}

// authSucceeded: "connected" is a success unless explicitly marked otherwise;
// "auth_response" must say so.
func authSucceeded(kind Kind, success *bool, status string) bool {
	if success != nil {
		return *success
	}
	if kind == KindConnected {
		return true
	}
	return status == string(KindConnected)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstID(ids ...ID) ID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}
