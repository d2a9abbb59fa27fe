package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsDetails(t *testing.T) {
	err := NewError(ErrMessageContentTooLong, 5000)

	assert.Equal(t, ErrMessageContentTooLong, err.Code)
	assert.Equal(t, "Message is too long (max 5000 bytes).", err.Message)
	assert.Equal(t, http.StatusOK, err.Status)
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(999999)

	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestNewErrorKeepsExplicitStatus(t *testing.T) {
	err := NewError(ErrRoomNotFound)

	assert.Equal(t, http.StatusNotFound, err.Status)
}

func TestWrapAndIsCode(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrTransport, cause, "dial failed")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrTransport))
	assert.False(t, IsCode(err, ErrNotConnected))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "Connection to server failed: dial failed", err.Message)

	outer := fmt.Errorf("connect: %w", err)
	assert.True(t, IsCode(outer, ErrTransport))
}

func TestIsCodeFollowsNestedCustomErrors(t *testing.T) {
	inner := NewError(ErrMalformedToken)
	outer := Wrap(ErrAuthFailed, inner, "token rejected")

	assert.True(t, IsCode(outer, ErrAuthFailed))
	assert.True(t, IsCode(outer, ErrMalformedToken))
	assert.Equal(t, "Authentication failed: token rejected", outer.Message)
}

func TestIsCodeNil(t *testing.T) {
	assert.False(t, IsCode(nil, ErrUnknown))
	assert.False(t, IsCode(errors.New("plain"), ErrUnknown))
}
