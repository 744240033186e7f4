// Command boxctl manages storefront data on the hosted backend: it prints the table DDL, imports
// scraped products and curated mystery boxes, and lists what the storefront would display.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/config"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/observability"
	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
)

var (
	logger  *zap.Logger
	envFile string
	verbose bool

	// openStore connects to the backend; tests replace it.
	openStore = connectStore
)

// store is the part of the Backend Data Client boxctl drives.
type store interface {
	InsertProducts(ctx context.Context, products []backend.ProductRecord) error
	InsertBoxes(ctx context.Context, boxes []backend.Box) error
	MysteryBoxes(ctx context.Context, category string) ([]backend.Box, error)
}

var errBackendNotConfigured = errors.New("backend is not configured: set SUPABASE_URL and SUPABASE_ANON_KEY")

var rootCmd = &cobra.Command{
	Use:   "boxctl",
	Short: "Manage gym subscription box data",
	Long: `boxctl seeds and inspects the storefront tables on the hosted backend.

Connection settings come from the same environment variables and .env files the
storefront server reads (SUPABASE_URL, SUPABASE_ANON_KEY).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		if !verbose {
			logger = zap.NewNop()
			return nil
		}
		base, err := observability.NewLogger()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = base.Named("boxctl")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to read instead of .env and .env.local")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "emit structured logs to stdout")

	importCmd.AddCommand(importProductsCmd, importBoxesCmd)
	rootCmd.AddCommand(schemaCmd, importCmd, listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context) (config.Config, error) {
	var opts []config.Option
	if envFile != "" {
		opts = append(opts, config.WithEnvFiles(envFile))
	}
	cfg, err := config.Load(ctx, opts...)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			return config.Config{}, fmt.Errorf("invalid configuration: %v", invalid.Fields())
		}
		return config.Config{}, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// connectStore returns errBackendNotConfigured when the URL or key is missing.
func connectStore(_ context.Context, cfg config.BackendConfig) (store, error) {
	if !cfg.Configured() {
		return nil, errBackendNotConfigured
	}
	sb, err := supabase.New(cfg.URL, cfg.AnonKey, supabase.WithLogger(logger.Named("supabase")))
	if err != nil {
		return nil, fmt.Errorf("connect backend: %w", err)
	}
	return backend.New(sb, logger)
}
