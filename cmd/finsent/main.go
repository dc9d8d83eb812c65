package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/finsent/internal/app"
	"github.com/deusflow/finsent/internal/config"
	"github.com/deusflow/finsent/internal/logger"
	"github.com/deusflow/finsent/internal/metrics"
)

type rootFlags struct {
	configPath string
	debug      bool
	monitor    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "finsent",
		Short:         "Score the sentiment of financial news feeds",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flags.monitor, "monitor", false, "serve /health and /metrics while running")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Fetch feeds, score articles and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	})

	var file string
	score := &cobra.Command{
		Use:   "score",
		Short: "Score a local YAML article list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app.App) error {
				return a.ScoreFile(ctx, file)
			})
		},
	}
	score.Flags().StringVarP(&file, "file", "f", "", "YAML file with an articles list")
	if err := score.MarkFlagRequired("file"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking file flag as required: %v\n", err)
		os.Exit(1)
	}
	root.AddCommand(score)

	return root
}

func withApp(parent context.Context, flags *rootFlags, fn func(context.Context, *app.App) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}
	if flags.monitor {
		cfg.Monitoring.Enabled = true
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stdout sync fails on some terminals

	if cfg.Monitoring.Enabled {
		srv := startMonitoringServer(cfg.Monitoring.Addr, metrics.Global, log)
		defer shutdown(srv, log)
	}

	a, err := app.New(ctx, cfg, log, metrics.Global, os.Stdout)
	if err != nil {
		log.Error("Failed to start", logger.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Close failed", logger.Error(err))
		}
	}()

	if err := fn(ctx, a); err != nil {
		log.Error("Run failed", logger.Error(err))
		return err
	}
	return nil
}
