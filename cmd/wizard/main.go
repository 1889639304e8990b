// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relabs-tech/calibration_wizard/internal/app"
	"github.com/relabs-tech/calibration_wizard/internal/config"
	"github.com/relabs-tech/calibration_wizard/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Head-pose guided calibration wizard",
	Long: `wizard walks an operator through a fixed sequence of head poses
(left, center, right at three pitch levels) and forwards every tracker
sample to a calibration accumulator while the sequence runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			cfg = config.Default()
		} else {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = config.Get()
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		var err error
		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run one calibration session in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context) error {
			logger.Info("starting calibration wizard (console)",
				zap.String("tracker", cfg.Tracker), zap.String("accumulator", cfg.Accumulator))
			return app.RunConsole(ctx, cfg, nil, cmd.OutOrStdout(), logger)
		})
	},
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve calibration sessions over a websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context) error {
			logger.Info("starting calibration wizard (web)", zap.Int("port", cfg.WebServerPort))
			return app.RunWeb(ctx, cfg, logger)
		})
	},
}

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Publish a mock head pose stream to the MQTT broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context) error {
			logger.Info("starting mock pose producer", zap.String("topic", cfg.TopicPose))
			return app.RunProducer(ctx, cfg, logger)
		})
	},
}

// run calls fn with a context cancelled on SIGINT/SIGTERM. An interrupt is
// a clean exit.
func run(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := fn(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("interrupted, shutting down")
		return nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "KEY=VALUE config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(produceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
