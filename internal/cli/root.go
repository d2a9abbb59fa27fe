/*
Package cli implements the swiftchat command line: an interactive chat client, the
in-memory relay server, a load-test harness and an auth debugging walkthrough.
*/
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"swiftchat/internal/configs"
	"swiftchat/internal/pkg/logx"
)

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

type app struct {
	v   *viper.Viper
	cfg *configs.AppConfig
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "swiftchat",
		Short:         "SwiftChat: real-time chat client, relay and harnesses",
		Long:          "swiftchat connects to a SwiftChat server over WebSocket, keeps the session alive across drops, and ships an in-memory relay plus load and auth harnesses for testing.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				a.v.SetConfigFile(cfgFile)
			}

			cfg, err := configs.LoadConfig(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.swiftchat/config.toml)")
	flags.String("env", "", "environment: development or production")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("api-url", "", "REST base URL")
	flags.String("ws-url", "", "real-time endpoint URL")
	flags.String("reconnect-policy", "", "reconnect policy: fixed or backoff")
	flags.Duration("ack-timeout", 0, "drop unacknowledged messages after this long (0 keeps them)")
	bindFlags(a.v, flags, map[string]string{
		configs.KeyEnvironment:     "env",
		configs.KeyLogLevel:        "log-level",
		configs.KeyAPIURL:          "api-url",
		configs.KeyWSURL:           "ws-url",
		configs.KeyReconnectPolicy: "reconnect-policy",
		configs.KeyAckTimeout:      "ack-timeout",
	})

	rootCmd.AddCommand(
		newChatCmd(a),
		newServeCmd(a),
		newLoadTestCmd(a),
		newDebugAuthCmd(a),
	)

	return rootCmd
}

// bindFlags binds each config key to the named flag.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
