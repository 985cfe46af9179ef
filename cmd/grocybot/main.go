// Command grocybot runs the Grocy Telegram bot: the chat command loop, the
// change monitor that pushes notifications, and the optional admin API.
//
// @title                      Grocy Bot Admin API
// @version                    1.0
// @description                Watcher status, manual polls, cache control and the notification delivery journal of the Grocy Telegram bot.
// @license.name               MIT
// @BasePath                   /api/v1
// @securityDefinitions.apikey AdminToken
// @in                         header
// @name                       Authorization
// @description                Bearer token from ADMIN_API_TOKEN, or the same value in X-API-Key.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-grocy-bot/internal/config"
	"github.com/tbourn/go-grocy-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	envFile string
}

func main() {
	sysutil.ConfigureLogger(os.Stderr, "info", false)

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func newRootCmd() *cobra.Command {
	opts := rootOptions{envFile: ".env"}

	root := &cobra.Command{
		Use:           "grocybot",
		Short:         "Telegram bot and change notifier for Grocy",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", opts.envFile, "dotenv file loaded before the environment is read (missing file is ignored)")

	root.AddCommand(
		newServeCmd(&opts),
		newConfigCmd(&opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the change monitor and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.envFile)
			if err != nil {
				return err
			}
			sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.envFile)
			if err != nil {
				return err
			}
			return cfg.WriteSummary(cmd.OutOrStdout())
		},
	}
}

// loadConfig reads path into the environment, without overriding variables
// that are already set, and loads the configuration.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return config.Load()
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
