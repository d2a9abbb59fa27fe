/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
intent results, relay HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Content Errors
	ErrRoomNameInvalid:       {Code: ErrRoomNameInvalid, Message: "Invalid room name.", Status: http.StatusBadRequest},
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message is empty."},

	// 3xxx: User, Token and Security Errors
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrNoToken:            {Code: ErrNoToken, Message: "No authentication token. Please sign in."},
	ErrMalformedToken:     {Code: ErrMalformedToken, Message: "Authentication token is malformed."},
	ErrAuthFailed:         {Code: ErrAuthFailed, Message: "Authentication failed: %s"},

	// 4xxx: Session and Protocol Errors
	ErrNotConnected:      {Code: ErrNotConnected, Message: "Not connected to server."},
	ErrNotAuthenticated:  {Code: ErrNotAuthenticated, Message: "Session is not authenticated."},
	ErrNotInRoom:         {Code: ErrNotInRoom, Message: "Not in a room."},
	ErrRoomJoinFailed:    {Code: ErrRoomJoinFailed, Message: "Failed to join room: %s"},
	ErrProtocolViolation: {Code: ErrProtocolViolation, Message: "Unrecognized frame from server."},
	ErrTransport:         {Code: ErrTransport, Message: "Connection to server failed: %s"},
	ErrPendingNotFound:   {Code: ErrPendingNotFound, Message: "No pending send matches the acknowledgement."},
	ErrSessionClosed:     {Code: ErrSessionClosed, Message: "Session is closed."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
