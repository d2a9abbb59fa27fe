/*
Package token holds the client's bearer token.

The token is persisted under a single slot of a kv.Store. Claims are read from the
token's payload segment without verifying the signature: they are display data for
the client, and the server remains the only authority on whether a token is valid.
*/
package token

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"swiftchat/internal/app/kv"
	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
)

// SlotKey names the storage slot holding the bearer token.
const SlotKey = "authToken"

// Token is an opaque bearer string.
type Token string

// Claims are the decoded, unverified claims of a Token.
type Claims struct {
	Subject    string
	Username   string
	Issuer     string
	LastActive string
	IssuedAt   time.Time
	ExpiresAt  time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token carries an expiry that is at or before now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// IsMissing reports whether raw should be treated as "no token". Browser-era clients
// stored the strings "undefined" and "null" when they had nothing to store.
func IsMissing(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "", "undefined", "null":
		return true
	}
	return false
}

// Decode extracts the claims of tok. It fails with errs.ErrMalformedToken when the
// token does not have three segments or its payload is not a JSON object.
func Decode(tok Token) (*Claims, error) {
	if IsMissing(string(tok)) {
		return nil, errs.NewError(errs.ErrNoToken)
	}

	payload, err := jwt.DecodeUnverified(string(tok))
	if err != nil {
		return nil, errs.Wrap(errs.ErrMalformedToken, err)
	}

	claims := &Claims{
		Subject:    payload.Subject,
		Username:   payload.Username,
		Issuer:     payload.Issuer,
		LastActive: payload.LastActive,
	}
	if payload.IssuedAt != 0 {
		claims.IssuedAt = time.Unix(payload.IssuedAt, 0)
	}
	if exp, ok := payload.Expiry(); ok {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

// Store is the sole owner of the current token. It is safe for concurrent use.
type Store struct {
	backing kv.Store

	mu    sync.RWMutex
	token Token
}

// NewStore creates a Store over backing. A nil backing keeps the token in memory only.
func NewStore(backing kv.Store) *Store {
	if backing == nil {
		backing = kv.NewMemoryStore()
	}
	return &Store{backing: backing}
}

// Load reads the persisted slot into memory. A missing slot or a placeholder value
// leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.backing.Get(ctx, SlotKey)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if IsMissing(raw) {
		s.token = ""
		return nil
	}
	s.token = Token(strings.TrimSpace(raw))
	return nil
}

// Get returns the current token, if any.
func (s *Store) Get() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", false
	}
	return s.token, true
}

// Set replaces the current token and persists it. Setting a placeholder clears the store.
func (s *Store) Set(ctx context.Context, tok Token) error {
	if IsMissing(string(tok)) {
		return s.Clear(ctx)
	}

	tok = Token(strings.TrimSpace(string(tok)))

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	if err := s.backing.Put(ctx, SlotKey, string(tok)); err != nil {
		logx.Error(err, "Failed to persist auth token")
		return err
	}
	return nil
}

// Clear forgets the current token and removes the persisted slot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if err := s.backing.Delete(ctx, SlotKey); err != nil {
		logx.Error(err, "Failed to remove persisted auth token")
		return err
	}
	return nil
}

// Claims decodes the current token.
func (s *Store) Claims() (*Claims, error) {
	tok, ok := s.Get()
	if !ok {
		return nil, errs.NewError(errs.ErrNoToken)
	}
	return Decode(tok)
}
