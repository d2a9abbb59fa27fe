package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"swiftchat/internal/configs"
	"swiftchat/internal/handler"
	"swiftchat/internal/pkg/logx"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory relay server",
		Long:  "serve starts a relay speaking the SwiftChat REST and WebSocket protocol. Accounts, rooms and history live in memory and are lost on exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Port))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(cmd.Context(), a.cfg, listener)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 0, "listen port")
	flags.String("jwt-secret", "", "HMAC secret for issued tokens")
	flags.StringSlice("allowed-origins", nil, "origins allowed outside development")
	bindFlags(a.v, flags, map[string]string{
		configs.KeyPort:           "port",
		configs.KeyJWTSecret:      "jwt-secret",
		configs.KeyAllowedOrigins: "allowed-origins",
	})

	return cmd
}

// serve runs the relay on listener until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, cfg *configs.AppConfig, listener net.Listener) error {
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	deps := handler.NewAppDeps(cfg, 0)

	server := &http.Server{
		Handler:           handler.Router(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logx.Info("SwiftChat relay listening", "addr", listener.Addr().String())
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		deps.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by the server; the hub closes them.
	deps.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logx.Info("Server gracefully stopped.")
	return nil
}
