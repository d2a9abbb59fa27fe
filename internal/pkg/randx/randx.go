/*
Package randx provides functions for generating cryptographically secure random numbers and unique identifiers.

It generates fixed-length Base62 room ids for the relay and UUIDs for users, messages and
the client's local ids of pending sends.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// RoomIDLength is the fixed length of a generated room id.
	RoomIDLength = 6
)

// RoomID generates a Base62 encoded room id using crypto/rand.
func RoomID() (string, error) {
	result := make([]byte, RoomIDLength)

	for i := range RoomIDLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room id: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// IsValidRoomID reports whether id has RoomIDLength Base62 characters.
func IsValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// UserID generates the id assigned to a newly registered user.
func UserID() string {
	return uuid.New().String()
}

// LocalID generates the client-side id of an outbound frame awaiting acknowledgement.
func LocalID() string {
	return "local-" + uuid.New().String()
}
