package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/app"
	"github.com/ykvlv/sobre/internal/config"
	"github.com/ykvlv/sobre/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sobre",
		Short:         "Daily reset blocking, reminders and check-in",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newLaunchCmd())
	root.AddCommand(newCheckInCmd())
	root.AddCommand(newSettingsCmd())
	root.AddCommand(newEmergencyCmd())
	root.AddCommand(newReminderCmd())
	root.AddCommand(newShieldCmd())
	root.AddCommand(newOpenCmd())
	root.AddCommand(newDeviceCmd())
	root.AddCommand(newPermissionCmd())
	return root
}

// withApp loads config, builds the logger and app, runs fn and tears down.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	// Sync errors on stderr are common; ignore them.
	defer func() { _ = log.Sync() }()
	log = logger.ForCommand(log, cmd.Name())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(ctx, a)
}
