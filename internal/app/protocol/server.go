package protocol

import "encoding/json"

// ServerData is the "data" object of a relay frame.
type ServerData struct {
	Type      Kind   `json:"type"`
	Status    string `json:"status,omitempty"`
	Code      int    `json:"code,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	LocalID   string `json:"local_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Name      string `json:"name,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix milliseconds
}

// ServerFrame is the envelope shape written by the relay.
type ServerFrame struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    ServerData `json:"data"`
}

// EncodeServer builds and serializes a relay frame.
func EncodeServer(success bool, message string, data ServerData) ([]byte, error) {
	return json.Marshal(ServerFrame{Success: success, Message: message, Data: data})
}
