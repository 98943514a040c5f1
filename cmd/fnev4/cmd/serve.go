package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mikaelarth/fnev4/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API consumed by the presentation layer.

Endpoints:
  POST /api/v1/import               - Import a workbook (multipart)
  POST /api/v1/certify              - Trigger a certification batch
  POST /api/v1/invoices/:id/retry   - Retry one Error invoice
  GET  /api/v1/invoices             - List invoices (status filter)
  GET  /api/v1/invoices/:id         - Invoice detail with audit log
  GET  /api/v1/sessions/:id/report  - Import session report
  GET  /health                      - Health check

Examples:
  fnev4 serve
  fnev4 serve --address :8080 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 2*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	im, err := buildImporter(cmd.Context(), st)
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(st)
	if err != nil {
		return err
	}

	srv := server.NewServer(&server.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}, im, orch, st, logger)

	logger.WithField("address", serverAddr).Info("starting HTTP server")
	return srv.Run()
}
