package main

import (
	"fmt"
	"os"

	"SalesPulse/internal/di"
	"SalesPulse/pkg/config"
	"SalesPulse/pkg/server"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "salespulse",
	Short:         "Daily sales forecasting service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the forecast API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, trainCmd, predictCmd, statusCmd, runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	app, err := newApp()
	if err != nil {
		return err
	}
	return app.Run()
}

// newApp loads the configuration and wires every dependency.
func newApp() (*server.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, nil
}

// loadConfig falls back to defaults plus environment when the config file
// does not exist, so the binary also runs from a bare container.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.FromEnv()
	}
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}
