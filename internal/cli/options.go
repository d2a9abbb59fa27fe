package cli

import (
	"swiftchat/internal/app/session"
	"swiftchat/internal/app/token"
	"swiftchat/internal/configs"
)

// sessionOptions maps configuration onto session.Options. A zero keep-alive
// interval in the config disables pings.
func sessionOptions(cfg *configs.AppConfig, store *token.Store) session.Options {
	var policy session.ReconnectPolicy = session.FixedDelay{Delay: cfg.ReconnectDelay}
	if cfg.ReconnectPolicy == configs.PolicyBackoff {
		policy = &session.Backoff{
			InitialDelay: cfg.ReconnectDelay,
			MaxDelay:     cfg.ReconnectMaxDelay,
			Jitter:       true,
			MaxAttempts:  cfg.ReconnectMaxAttempts,
		}
	}

	keepAlive := cfg.KeepAliveInterval
	if keepAlive == 0 {
		keepAlive = -1
	}

	return session.Options{
		URL:               cfg.WSURL,
		Tokens:            store,
		Policy:            policy,
		KeepAliveInterval: keepAlive,
		AckTimeout:        cfg.AckTimeout,
		DialTimeout:       cfg.DialTimeout,
		DisableRejoin:     !cfg.RejoinOnReconnect,
	}
}
