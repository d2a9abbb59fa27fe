/*
Package protocol defines the frames exchanged over the real-time channel.

Client frames are flat JSON objects discriminated by "type". Server frames arrive in
one of two shapes: the flat shape with a top-level "type", or the envelope shape
{"success", "message", "data": {"type", ...}}. Decode accepts both and returns one
value of the closed Inbound set.
*/
package protocol

import (
	"encoding/json"
	"strings"

	"swiftchat/internal/pkg/errs"
)

// FrameType is the discriminant of a client frame.
type FrameType string

const (
	TypeAuth        FrameType = "auth"
	TypeJoinRoom    FrameType = "join_room"
	TypeLeaveRoom   FrameType = "leave_room"
	TypeChatMessage FrameType = "chat_message"
	TypePing        FrameType = "ping"

	// typeSendMessage is an older spelling of chat_message still sent by some scripts.
	typeSendMessage FrameType = "send_message"
)

// Frame is an outbound client frame.
type Frame struct {
	Type    FrameType `json:"type"`
	Token   string    `json:"token,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	RoomID  string    `json:"room_id,omitempty"`
	Content string    `json:"content,omitempty"`

	// LocalID lets a server that echoes it correlate message_sent exactly.
	LocalID string `json:"local_id,omitempty"`
}

func Auth(token, userID string) Frame {
	return Frame{Type: TypeAuth, Token: token, UserID: userID}
}

func JoinRoom(roomID string) Frame {
	return Frame{Type: TypeJoinRoom, RoomID: roomID}
}

func LeaveRoom(roomID string) Frame {
	return Frame{Type: TypeLeaveRoom, RoomID: roomID}
}

func SendChat(roomID, content, localID string) Frame {
	return Frame{Type: TypeChatMessage, RoomID: roomID, Content: content, LocalID: localID}
}

func Ping() Frame {
	return Frame{Type: TypePing}
}

// Encode serializes the frame.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeClientFrame parses a frame sent by a client. The relay uses it.
func DecodeClientFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, errs.Wrap(errs.ErrProtocolViolation, err)
	}

	f.Type = FrameType(strings.TrimSpace(string(f.Type)))
	if f.Type == typeSendMessage {
		f.Type = TypeChatMessage
	}
	if f.Type == "" {
		return Frame{}, errs.NewError(errs.ErrProtocolViolation)
	}

	return f, nil
}
