package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SalesPulse/internal/di"
	"SalesPulse/internal/usecase"
	"SalesPulse/pkg/server"
	"SalesPulse/pkg/util"

	"github.com/spf13/cobra"
)

// --- train ---

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fetch all sales, train a model and persist it",
	Long: `Fetch all sales, train a model and persist it.

Hyper-parameters default to the model section of the config file.

Examples:
  salespulse train
  salespulse train --n-estimators 200 --max-depth 12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *server.App) error {
			req := di.TrainDefaults(app.Config())
			if cmd.Flags().Changed("n-estimators") {
				req.NEstimators, _ = cmd.Flags().GetInt("n-estimators")
			}
			if cmd.Flags().Changed("max-depth") {
				req.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
			}
			if cmd.Flags().Changed("test-size") {
				req.TestSize, _ = cmd.Flags().GetFloat64("test-size")
			}
			if cmd.Flags().Changed("random-state") {
				req.RandomState, _ = cmd.Flags().GetInt64("random-state")
			}

			res, err := app.Service().Train(ctx, req)
			if err != nil {
				return err
			}
			renderTraining(os.Stdout, res)
			return nil
		})
	},
}

func init() {
	trainCmd.Flags().Int("n-estimators", 100, "number of trees")
	trainCmd.Flags().Int("max-depth", 10, "maximum tree depth")
	trainCmd.Flags().Float64("test-size", 0.2, "held-out fraction in [0, 1)")
	trainCmd.Flags().Int64("random-state", 42, "seed for the split and the forest")
}

// --- predict ---

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast daily sales with the persisted model",
	Long: `Forecast daily sales with the persisted model.

Examples:
  salespulse predict --days 14
  salespulse predict --days 7 --shop north --start 2024-03-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		shop, _ := cmd.Flags().GetString("shop")
		startStr, _ := cmd.Flags().GetString("start")

		p := usecase.PredictParams{Days: days, Shop: shop}
		if startStr != "" {
			start, ok := util.ParseDate(startStr)
			if !ok {
				return fmt.Errorf("--start must be YYYY-MM-DD, got %q", startStr)
			}
			p.Start = &start
		}

		return withApp(func(ctx context.Context, app *server.App) error {
			res, err := app.Service().Predict(ctx, p)
			if err != nil {
				return err
			}
			renderForecast(os.Stdout, res)
			return nil
		})
	},
}

func init() {
	predictCmd.Flags().Int("days", 30, "forecast horizon in days (1-90)")
	predictCmd.Flags().String("shop", "", "shop to forecast (per-shop models only)")
	predictCmd.Flags().String("start", "", "first forecast day, YYYY-MM-DD")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted model bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *server.App) error {
			if err := app.Service().Warmup(ctx); err != nil {
				printWarning("model does not load: %v", err)
			}
			st, err := app.Service().Status(ctx)
			if err != nil {
				return err
			}
			renderStatus(os.Stdout, st)
			return nil
		})
	},
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent training runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit < 1 {
			return fmt.Errorf("--limit must be positive")
		}
		return withApp(func(ctx context.Context, app *server.App) error {
			res, err := app.Service().Runs(ctx, limit)
			if err != nil {
				return err
			}
			renderRuns(os.Stdout, res.Runs)
			return nil
		})
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "number of runs to show")
}

// withApp wires the application for a one-shot command, cancels it on
// SIGINT/SIGTERM and releases every client afterwards.
func withApp(fn func(ctx context.Context, app *server.App) error) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, app)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.Shutdown(shutdownCtx)

	return runErr
}
