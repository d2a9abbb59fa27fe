package jwt

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newPayload(userID, username string) *Payload {
	return &Payload{
		StandardClaims: jwt.StandardClaims{Subject: userID},
		Username:       username,
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(newPayload("u-1", "alice"), testSecret, time.Hour)
	require.NoError(t, err)

	payload, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", payload.UserID())
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, TokenIssuer, payload.Issuer)

	expiry, ok := payload.Expiry()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(&Payload{Username: "alice"}, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other")
	require.Error(t, err)
}

func TestDecodeUnverifiedIgnoresSignatureAndExpiry(t *testing.T) {
	token, err := GenerateToken(newPayload("u-2", "bob"), testSecret, -time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	require.Error(t, err)

	payload, err := DecodeUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "u-2", payload.UserID())
	assert.Equal(t, "bob", payload.Username)
}

func TestDecodeUnverifiedMalformed(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	testCases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "one segment", token: "abc"},
		{name: "two segments", token: header + ".abc"},
		{name: "payload not base64", token: header + ".!!!.sig"},
		{name: "payload not json", token: header + "." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeUnverified(tc.token)
			require.Error(t, err)
		})
	}
}

func TestIdentityExtractorMiddleware(t *testing.T) {
	token, err := GenerateToken(newPayload("u-3", "carol"), testSecret, time.Hour)
	require.NoError(t, err)

	var seen *Payload
	handler := IdentityExtractorMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPayloadFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "u-3", seen.UserID())

	seen = nil
	anon := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	anon.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), anon)
	assert.Nil(t, seen)
}
