package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/batchflow"
	"github.com/jpalmerr/batchflow/config"
	"github.com/jpalmerr/batchflow/internal/server"
	"github.com/jpalmerr/batchflow/internal/store"
)

// runOptions are the flags of the run command.
type runOptions struct {
	configFile    string
	statusPort    int
	overridePort  bool
	keepServing   bool
	progressEvery int
}

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// runCmd runs a job file to completion.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a job",
	Long: `Run a batchflow job.

The command will:
  - Load the job file and open its source and sink
  - Process batches until the source is exhausted or a batch fails
  - Optionally serve run status on --status-port (or status_port)

Logs are written to stderr as JSON, so the stdout sink can be piped.
Ctrl+C or SIGTERM cancels the run; in-flight batches see a cancelled
context and no new batches are claimed.

Example:
  batchflow run -c job.yaml
  batchflow run -c job.yaml --status-port 8080 --keep-serving`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to job file (required)")
	runCmd.Flags().Int("status-port", 0, "serve run status on this port (overrides status_port)")
	runCmd.Flags().String("log-level", "info", "log level: debug, info, warn or error")
	runCmd.Flags().Bool("keep-serving", false, "keep the status server up after the run until interrupted")
	runCmd.Flags().Int("progress-every", 100, "log progress every N batches (0 disables)")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	level, _ := flags.GetString("log-level")
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}

	var opts runOptions
	opts.configFile, _ = flags.GetString("config")
	opts.statusPort, _ = flags.GetInt("status-port")
	opts.overridePort = flags.Changed("status-port")
	opts.keepServing, _ = flags.GetBool("keep-serving")
	opts.progressEvery, _ = flags.GetInt("progress-every")

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeJob(ctx, opts, logger)
}

// executeJob loads, runs and reports one job.
func executeJob(ctx context.Context, opts runOptions, logger *slog.Logger) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	job, err := config.BuildJob(cfg)
	if err != nil {
		return fmt.Errorf("failed to build job: %w", err)
	}
	defer func() {
		if err := job.Close(); err != nil {
			logger.Warn("failed to close job", "error", err)
		}
	}()

	port := cfg.StatusPort
	if opts.overridePort {
		port = opts.statusPort
	}

	runID := uuid.NewString()
	st := store.NewMemoryStore()
	tracker := newRunTracker(st, runID, job)

	if port > 0 {
		serverCtx, cancelServer := context.WithCancel(ctx)
		defer cancelServer()

		srv := server.NewServer(st, port, logger)
		if err := srv.Start(serverCtx); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	logger.Info("job started",
		"run_id", runID,
		"name", job.Name,
		"mode", job.Mode.String(),
		"size", job.Batch.Size,
		"concurrency", job.Batch.Concurrency,
	)

	runOpts := []batchflow.Option{
		batchflow.WithRunID(runID),
		batchflow.WithLogger(logger),
		batchflow.WithBatchCallback(tracker.onBatch),
		batchflow.WithProgressCallback(tracker.onProgress),
	}
	if opts.progressEvery > 0 {
		runOpts = append(runOpts, batchflow.WithProgressCallback(progressLogger(logger, opts.progressEvery)))
	}

	runErr := job.Run(ctx, runOpts...)
	tracker.finish(runErr)

	final := tracker.snapshot()
	logger.Info("job finished",
		"run_id", runID,
		"state", string(final.State),
		"items", final.ProcessedItems,
		"batches", final.ProcessedBatches,
		"elapsed_ms", final.FinishedAt.Sub(final.StartedAt).Milliseconds(),
	)

	if port > 0 && opts.keepServing && ctx.Err() == nil {
		logger.Info("serving run status until interrupted", "port", port)
		<-ctx.Done()
	}

	return runErr
}

// progressLogger logs a progress line every n batches.
func progressLogger(logger *slog.Logger, n int) func(batchflow.ProgressSnapshot) {
	return func(p batchflow.ProgressSnapshot) {
		if p.ProcessedBatches%n != 0 {
			return
		}
		logger.Info("progress",
			"run_id", p.RunID,
			"items", p.ProcessedItems,
			"batches", p.ProcessedBatches,
			"items_per_second", p.ItemsPerSecond,
		)
	}
}
