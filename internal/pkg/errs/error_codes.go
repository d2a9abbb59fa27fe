/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific session, protocol and request errors
both inside the chat client and in the dev relay's REST responses.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request or intent parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room and Content Errors
const (
	// ErrRoomNameInvalid indicates that an empty or oversized room name was provided.
	ErrRoomNameInvalid = 2101

	// ErrRoomNotFound indicates that the attempted room id does not exist.
	ErrRoomNotFound = 2103

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageEmpty indicates that a chat message had no content after trimming.
	ErrMessageEmpty = 2202
)

// 3xxx: User, Token and Security Errors
const (
	// ErrInvalidUsername indicates a username that does not match the accepted pattern.
	ErrInvalidUsername = 3001

	// ErrInvalidPassword indicates a password outside the accepted length.
	ErrInvalidPassword = 3002

	// ErrUserAlreadyExists indicates a registration conflict.
	ErrUserAlreadyExists = 3003

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = 3004

	// ErrUnauthorized indicates that a bearer token is missing or was rejected.
	ErrUnauthorized = 3005

	// ErrNoToken indicates that the token store holds no usable bearer token.
	ErrNoToken = 3101

	// ErrMalformedToken indicates that the token's claims segment could not be decoded.
	ErrMalformedToken = 3102

	// ErrAuthFailed indicates that the server rejected the in-band auth frame.
	ErrAuthFailed = 3103
)

// 4xxx: Session and Protocol Errors
const (
	// ErrNotConnected indicates a send on a channel that is not open.
	ErrNotConnected = 4001

	// ErrNotAuthenticated indicates an intent that requires an authenticated session.
	ErrNotAuthenticated = 4002

	// ErrNotInRoom indicates an intent that requires the session to be in a room.
	ErrNotInRoom = 4003

	// ErrRoomJoinFailed indicates that the server refused a join_room request.
	ErrRoomJoinFailed = 4004

	// ErrProtocolViolation indicates an unparseable or unrecognized inbound frame.
	ErrProtocolViolation = 4005

	// ErrTransport indicates the channel could not be opened or dropped unexpectedly.
	ErrTransport = 4006

	// ErrPendingNotFound indicates that no pending send matched an acknowledgement.
	ErrPendingNotFound = 4007

	// ErrSessionClosed indicates an intent issued after the session was shut down.
	ErrSessionClosed = 4008
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general internal error.
	ErrUnknown = 5000
)
