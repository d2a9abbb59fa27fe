package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory so a developer's own config is not read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadConfigDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WSURL)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, filepath.Join(home, ".swiftchat", "session.toml"), cfg.TokenFile)
	assert.Equal(t, PolicyFixed, cfg.ReconnectPolicy)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 25*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Zero(t, cfg.AckTimeout)
	assert.True(t, cfg.RejoinOnReconnect)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, developmentSecret, cfg.JWTSecret)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfigEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("SWIFTCHAT_RECONNECT_POLICY", "Backoff")
	t.Setenv("SWIFTCHAT_RECONNECT_DELAY", "500ms")
	t.Setenv("SWIFTCHAT_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SWIFTCHAT_REJOIN_ON_RECONNECT", "false")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, PolicyBackoff, cfg.ReconnectPolicy)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.RejoinOnReconnect)
}

func TestLoadConfigFile(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".swiftchat")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
ws_url = "ws://chat.example:9000/ws"
ack_timeout = "5s"
port = 9000
`), 0o600))

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "ws://chat.example:9000/ws", cfg.WSURL)
	assert.Equal(t, 5*time.Second, cfg.AckTimeout)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadConfigValidation(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "privileged port", env: map[string]string{"SWIFTCHAT_PORT": "80"}},
		{name: "unknown policy", env: map[string]string{"SWIFTCHAT_RECONNECT_POLICY": "random"}},
		{name: "negative delay", env: map[string]string{"SWIFTCHAT_RECONNECT_DELAY": "-1s"}},
		{name: "zero delay", env: map[string]string{"SWIFTCHAT_RECONNECT_DELAY": "0s"}},
		{name: "zero max delay", env: map[string]string{"SWIFTCHAT_RECONNECT_MAX_DELAY": "0"}},
		{name: "negative ack timeout", env: map[string]string{"SWIFTCHAT_ACK_TIMEOUT": "-5s"}},
		{name: "negative attempts", env: map[string]string{"SWIFTCHAT_RECONNECT_MAX_ATTEMPTS": "-2"}},
		{name: "production without secret", env: map[string]string{"SWIFTCHAT_ENVIRONMENT": "production"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(viper.New())
			require.Error(t, err)
		})
	}
}
