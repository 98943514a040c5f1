package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mikaelarth/fnev4/internal/certify"
	"github.com/mikaelarth/fnev4/internal/config"
	"github.com/mikaelarth/fnev4/internal/dgi"
	"github.com/mikaelarth/fnev4/internal/excel"
	"github.com/mikaelarth/fnev4/internal/importer"
	"github.com/mikaelarth/fnev4/internal/resolve"
	"github.com/mikaelarth/fnev4/internal/store"
	"github.com/mikaelarth/fnev4/internal/validate"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	dbPath       string

	appCfg config.App
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fnev4",
	Short: "Import legacy invoice exports and certify them against the DGI FNE",
	Long: `fnev4 ingests spreadsheet invoice exports from the legacy accounting
package, validates and persists them locally, and certifies each invoice
against the DGI electronic-invoice (FNE) API.

Examples:
  # Import one or more workbooks
  fnev4 import export-janvier.xlsx

  # Certify everything eligible
  fnev4 certify --all

  # Show invoice statuses
  fnev4 status

  # Run the daemon: polling, import-directory watch, certification workers
  fnev4 run --watch-dir ./exports

Connection parameters come from the environment (or a .env file):
  DGI_BASE_URL, DGI_API_KEY, DGI_POINT_OF_SALE, DGI_TIMEOUT_SECONDS,
  DGI_MAX_RETRIES`,
	Version: version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (env: FNE_DB_PATH)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	appCfg = config.Load()
	if dbPath != "" {
		appCfg.DatabasePath = dbPath
	}
	logger = config.NewLogger(verbose)
}

// openStore opens the database shared by every subcommand.
func openStore() (*store.Store, error) {
	return store.Open(appCfg.DatabasePath, store.WithLogger(logger))
}

// buildImporter wires the import pipeline over the store.
func buildImporter(ctx context.Context, st *store.Store) (*importer.Importer, error) {
	vatTypes, err := st.VatTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load VAT reference table: %w", err)
	}

	extractor := excel.NewExtractor(excel.WithLogger(logger))
	resolver := resolve.NewResolver(st, resolve.WithSentinel(appCfg.DiversCode))
	validator := validate.NewValidator(vatTypes)

	return importer.New(st, extractor, resolver, validator, importer.WithLogger(logger)), nil
}

// buildOrchestrator wires the certification side.
func buildOrchestrator(st *store.Store) (*certify.Orchestrator, error) {
	apiClient, err := dgi.NewClient(appCfg.DGI, dgi.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return certify.New(st, apiClient,
		certify.WithMaxRetries(appCfg.DGI.MaxRetries),
		certify.WithConcurrency(appCfg.Concurrency),
		certify.WithLogger(logger),
	), nil
}
