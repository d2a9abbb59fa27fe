package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// UserIdentityExpiration defines the lifetime of a login token.
	UserIdentityExpiration = time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "SwiftChat"
)

// GenerateToken creates and signs a new JWT Token string based on the provided Payload struct.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.ExpiresAt = now.Add(duration).Unix()
	payload.IssuedAt = now.Unix()
	payload.Issuer = TokenIssuer

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the JWT Token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

// DecodeUnverified extracts the claims from the token's payload segment without
// checking the signature or expiry. The result is display data only; the server
// decides whether the token is acceptable.
func DecodeUnverified(tokenString string) (*Payload, error) {
	claims := &Payload{}

	if _, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}

	return claims, nil
}
