package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/batchflow/config"
)

// validateCmd validates a job file without running it.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a job file",
	Long: `Validate a batchflow job file without running it.

This command parses the YAML, expands environment variables, and validates
all fields. It does not contact the source or create output files, which
makes it suitable for CI checks.

Exit codes:
  0 - Job file is valid
  1 - Job file is invalid (error details printed to stderr)

Example:
  batchflow validate -c job.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to job file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	if cfg.Name != "" {
		fmt.Fprintf(out, "  Name:        %s\n", cfg.Name)
	}
	fmt.Fprintf(out, "  Mode:        %s\n", cfg.Mode)
	fmt.Fprintf(out, "  Batch size:  %s\n", describeSize(cfg))
	fmt.Fprintf(out, "  Concurrency: %d\n", max(cfg.Batch.Concurrency, 1))
	fmt.Fprintf(out, "  Source:      %s\n", describeSource(cfg.Source))
	fmt.Fprintf(out, "  Sink:        %s\n", describeSink(cfg.Sink))
	if cfg.StatusPort > 0 {
		fmt.Fprintf(out, "  Status port: %d\n", cfg.StatusPort)
	}

	return nil
}

func describeSize(cfg *config.Config) string {
	if cfg.Mode == "index" {
		return "decided by source"
	}
	return fmt.Sprint(max(cfg.Batch.Size, 1))
}

func describeSource(s config.SourceConfig) string {
	if s.Type == config.SourceHTTP {
		return fmt.Sprintf("http %s", s.URL)
	}
	format := s.Format
	if format == "" {
		format = "ndjson"
	}
	return fmt.Sprintf("file %s (%s)", s.Path, format)
}

func describeSink(s config.SinkConfig) string {
	switch s.Type {
	case config.SinkHTTP:
		method := s.Method
		if method == "" {
			method = "POST"
		}
		return fmt.Sprintf("http %s %s", method, s.URL)
	case config.SinkFile:
		return fmt.Sprintf("file %s", s.Path)
	default:
		return "stdout"
	}
}
