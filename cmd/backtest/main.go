// cmd/backtest runs one fetch, signal and simulation pass in the foreground
// and prints the summary table.
//
// Usage:
//
//	go run ./cmd/backtest [--skip-fetch] [--csv-out results] [--db data/backtest.db]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"sma-vol-breakdown/config"
	"sma-vol-breakdown/internal/app"
	"sma-vol-breakdown/internal/logger"
	"sma-vol-breakdown/internal/report"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		skipFetch bool
		csvOut    string
		dbPath    string
	)

	cmd := &cobra.Command{
		Use:          "backtest",
		Short:        "Fetch candles, generate SMA/volume breakdown signals and backtest them",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.SQLitePath = dbPath
			}
			if cmd.Flags().Changed("csv-out") && strings.TrimSpace(csvOut) == "" {
				csvOut = cfg.ResultsDir
			}
			if !skipFetch {
				if err := cfg.RequireToken(); err != nil {
					return err
				}
			}

			level, err := logger.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log := logger.Init("backtest", level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log, skipFetch, csvOut)
		},
	}

	cmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "Reuse candles already stored in SQLite instead of calling Upstox")
	cmd.Flags().StringVar(&csvOut, "csv-out", "", "Write signals and results CSVs to this directory (RESULTS_DIR when given without a value)")
	cmd.Flags().Lookup("csv-out").NoOptDefVal = " "
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides SQLITE_PATH)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, skipFetch bool, csvOut string) error {
	// Metrics are collected but not served by the CLI.
	c, err := app.New(cfg, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer c.Close()

	rep, err := c.Pipeline(skipFetch, nil).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("backtest interrupted")
		}
		return err
	}

	fmt.Println()
	report.PrintSummary(os.Stdout, cfg.StrategyName, rep.Summary)

	if csvOut != "" {
		paths, err := report.ExportRun(csvOut, rep.FinishedAt, rep.Signals, rep.Outcomes)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		for _, p := range paths {
			log.Info("wrote csv", slog.String("path", p))
		}
	}
	return nil
}
