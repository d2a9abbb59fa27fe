package session

// ConnectionState is the position of a session in its lifecycle.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Authenticating
	Authenticated
	JoiningRoom
	InRoom
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case JoiningRoom:
		return "joining_room"
	case InRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

// HasChannel reports whether the state implies an open channel.
func (s ConnectionState) HasChannel() bool {
	return s >= Connected
}

// IsAuthenticated reports whether the server has accepted the session's token.
func (s ConnectionState) IsAuthenticated() bool {
	return s >= Authenticated
}
