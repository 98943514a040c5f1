package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mikaelarth/fnev4/internal/certify"
	"github.com/mikaelarth/fnev4/internal/importer"
	"github.com/mikaelarth/fnev4/internal/scheduler"
)

var (
	watchDir     string
	pollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the certification daemon",
	Long: `Run the long-lived daemon: a fixed-interval certification scan over
eligible invoices, plus an optional watch on the import directory that
imports new workbooks as the legacy package drops them.

Triggers only enqueue work; certification runs on its own worker pool and
an overlapping scan is skipped, never queued twice.

Examples:
  fnev4 run
  fnev4 run --watch-dir ./exports --poll-interval 30s`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&watchDir, "watch-dir", "", "Import directory to watch (env: FNE_IMPORT_DIR)")
	runCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Automatic scan interval (env: FNE_POLL_INTERVAL_SECONDS)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	im, err := buildImporter(ctx, st)
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(st)
	if err != nil {
		return err
	}

	interval := appCfg.PollInterval
	if pollInterval > 0 {
		interval = pollInterval
	}
	dir := appCfg.ImportDir
	if watchDir != "" {
		dir = watchDir
	}

	sched := scheduler.New(interval,
		scheduler.WithDebounce(appCfg.WatchDebounce),
		scheduler.WithLogger(logger),
	)
	if dir != "" {
		if err := sched.Watch(dir); err != nil {
			return err
		}
		logger.WithField("dir", dir).Info("watching import directory")
	}

	go consumeTriggers(ctx, sched, im, orch)

	logger.WithField("interval", interval.String()).Info("daemon started")
	err = sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("daemon stopped")
		return nil
	}
	return err
}

// consumeTriggers is the certification worker loop. Watch triggers import
// the new workbook first, then every trigger runs one automatic scan.
func consumeTriggers(ctx context.Context, sched *scheduler.Scheduler, im *importer.Importer, orch *certify.Orchestrator) {
	for {
		select {
		case <-ctx.Done():
			return
		case trig := <-sched.Triggers():
			if trig.Source == scheduler.SourceWatch && trig.Path != "" {
				if report, err := im.ImportFile(ctx, trig.Path); err != nil {
					logger.WithError(err).WithField("path", trig.Path).Error("watched import failed")
				} else {
					logger.WithFields(logrus.Fields{
						"path":     trig.Path,
						"imported": report.Imported,
						"failed":   report.Failed,
					}).Info("watched workbook imported")
				}
			}

			result, err := orch.RunAuto(ctx)
			if errors.Is(err, certify.ErrBatchRunning) {
				logger.Debug("scan skipped, batch already running")
				continue
			}
			if err != nil {
				logger.WithError(err).Error("automatic scan failed")
				continue
			}
			if result.Processed > 0 {
				logger.WithFields(logrus.Fields{
					"source":    trig.Source,
					"processed": result.Processed,
					"certified": result.Certified,
					"failed":    result.Failed,
					"skipped":   result.Skipped,
				}).Info("automatic scan finished")
			}
		}
	}
}
