/*
Package configs is responsible for loading and validating the application's configuration settings.

Values come from, in increasing priority: built-in defaults, an optional TOML file
(~/.swiftchat/config.toml, or the file named by --config), SWIFTCHAT_* environment variables,
and command-line flags bound by the cli package.
*/
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys shared by viper, the environment and cobra flags.
const (
	KeyEnvironment          = "environment"
	KeyLogLevel             = "log_level"
	KeyAPIURL               = "api_url"
	KeyWSURL                = "ws_url"
	KeyTokenFile            = "token_file"
	KeyReconnectPolicy      = "reconnect_policy"
	KeyReconnectDelay       = "reconnect_delay"
	KeyReconnectMaxDelay    = "reconnect_max_delay"
	KeyReconnectMaxAttempts = "reconnect_max_attempts"
	KeyKeepAliveInterval    = "keepalive_interval"
	KeyAckTimeout           = "ack_timeout"
	KeyDialTimeout          = "dial_timeout"
	KeyRejoinOnReconnect    = "rejoin_on_reconnect"
	KeyPort                 = "port"
	KeyAllowedOrigins       = "allowed_origins"
	KeyJWTSecret            = "jwt_secret"
)

const (
	envPrefix  = "SWIFTCHAT"
	configDir  = ".swiftchat"
	configName = "config"
	configType = "toml"

	// PolicyFixed retries after a constant delay.
	PolicyFixed = "fixed"
	// PolicyBackoff retries with capped exponential backoff.
	PolicyBackoff = "backoff"

	developmentSecret = "swiftchat_insecure_development_secret"
)

// AppConfig contains all configuration parameters for the client commands and the relay.
type AppConfig struct {
	// General Settings
	Environment string
	LogLevel    string

	// Client Settings
	APIURL               string
	WSURL                string
	TokenFile            string
	ReconnectPolicy      string
	ReconnectDelay       time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int
	KeepAliveInterval    time.Duration
	AckTimeout           time.Duration
	DialTimeout          time.Duration
	RejoinOnReconnect    bool

	// Relay Settings
	Port           int
	AllowedOrigins []string
	JWTSecret      string
}

// IsDevelopment reports whether the environment is "development".
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	tokenFile := filepath.Join(configDir, "session.toml")
	if home, err := os.UserHomeDir(); err == nil {
		tokenFile = filepath.Join(home, configDir, "session.toml")
	}

	v.SetDefault(KeyEnvironment, "development")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAPIURL, "http://localhost:8080")
	v.SetDefault(KeyWSURL, "ws://localhost:8080/ws")
	v.SetDefault(KeyTokenFile, tokenFile)
	v.SetDefault(KeyReconnectPolicy, PolicyFixed)
	v.SetDefault(KeyReconnectDelay, 3*time.Second)
	v.SetDefault(KeyReconnectMaxDelay, 30*time.Second)
	v.SetDefault(KeyReconnectMaxAttempts, 0)
	v.SetDefault(KeyKeepAliveInterval, 25*time.Second)
	v.SetDefault(KeyAckTimeout, time.Duration(0))
	v.SetDefault(KeyDialTimeout, 10*time.Second)
	v.SetDefault(KeyRejoinOnReconnect, true)
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyAllowedOrigins, []string{})
	v.SetDefault(KeyJWTSecret, "")
}

// LoadConfig reads the configuration through v. When v has no explicit config file,
// ~/.swiftchat/config.toml is used if it exists.
func LoadConfig(v *viper.Viper) (*AppConfig, error) {
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, configDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &AppConfig{
		Environment:          v.GetString(KeyEnvironment),
		LogLevel:             v.GetString(KeyLogLevel),
		APIURL:               strings.TrimRight(v.GetString(KeyAPIURL), "/"),
		WSURL:                v.GetString(KeyWSURL),
		TokenFile:            v.GetString(KeyTokenFile),
		ReconnectPolicy:      strings.ToLower(v.GetString(KeyReconnectPolicy)),
		ReconnectDelay:       v.GetDuration(KeyReconnectDelay),
		ReconnectMaxDelay:    v.GetDuration(KeyReconnectMaxDelay),
		ReconnectMaxAttempts: v.GetInt(KeyReconnectMaxAttempts),
		KeepAliveInterval:    v.GetDuration(KeyKeepAliveInterval),
		AckTimeout:           v.GetDuration(KeyAckTimeout),
		DialTimeout:          v.GetDuration(KeyDialTimeout),
		RejoinOnReconnect:    v.GetBool(KeyRejoinOnReconnect),
		Port:                 v.GetInt(KeyPort),
		AllowedOrigins:       splitOrigins(v.GetStringSlice(KeyAllowedOrigins)),
		JWTSecret:            v.GetString(KeyJWTSecret),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Environment == "" {
		c.Environment = "development"
	}

	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, 1024, 65535)
	}

	switch c.ReconnectPolicy {
	case PolicyFixed, PolicyBackoff:
	default:
		return fmt.Errorf("invalid %s %q: want %q or %q", KeyReconnectPolicy, c.ReconnectPolicy, PolicyFixed, PolicyBackoff)
	}

	// A zero reconnect delay would redial a dead server in a tight loop.
	for key, d := range map[string]time.Duration{
		KeyReconnectDelay:    c.ReconnectDelay,
		KeyReconnectMaxDelay: c.ReconnectMaxDelay,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}

	for key, d := range map[string]time.Duration{
		KeyAckTimeout:  c.AckTimeout,
		KeyDialTimeout: c.DialTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", key, d)
		}
	}

	if c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyReconnectMaxAttempts, c.ReconnectMaxAttempts)
	}

	if c.WSURL == "" || c.APIURL == "" {
		return errors.New("api_url and ws_url must be set")
	}

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("%s is required in %s environment for security", KeyJWTSecret, c.Environment)
		}
		c.JWTSecret = developmentSecret
	}

	return nil
}

// splitOrigins accepts both list values and a single comma-separated string.
func splitOrigins(values []string) []string {
	origins := []string{}
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
