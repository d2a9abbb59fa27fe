package jwt

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// Payload defines the claims carried by a SwiftChat bearer token.
// The standard claims are flattened into the token body: sub is the user id,
// exp/iat are unix seconds and iss names the issuing server.
type Payload struct {
	jwt.StandardClaims

	// Username is the display name of the token holder.
	Username string `json:"username,omitempty"`

	// LastActive is the holder's last-activity marker as issued by the server.
	LastActive string `json:"last_active,omitempty"`
}

// UserID returns the subject claim.
func (p *Payload) UserID() string {
	return p.Subject
}

// Expiry returns the exp claim, if present.
func (p *Payload) Expiry() (time.Time, bool) {
	if p.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.Unix(p.ExpiresAt, 0), true
}
