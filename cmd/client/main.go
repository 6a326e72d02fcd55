package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "wirechat-client",
		Short:         "Headless wirechat sync client",
		Long:          "Connects to a wirechat server, mirrors its state locally, and keeps the mirror current over the event stream.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&overrides.StreamURL, "stream-url", "", "websocket event stream URL")
	cmd.Flags().StringVar(&overrides.APIBaseURL, "api-url", "", "REST API base URL")
	cmd.Flags().StringVar(&overrides.StateDir, "state-dir", "", "directory for token and guest state")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&overrides.HeartbeatInterval, "heartbeat", 0, "heartbeat interval (0 uses the configured default)")

	return cmd
}

func run(configPath string, overrides config.Config) error {
	bootLog := log.New("info")

	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", path).Str("stream", cfg.StreamURL).Msg("starting wirechat client")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	start := time.Now()
	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info().Dur("uptime", time.Since(start)).Msg("client stopped")
	return nil
}
