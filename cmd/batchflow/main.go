// Package main is the entry point for the batchflow CLI.
//
// batchflow can be used as a library (SDK) or as a standalone binary driven
// by a YAML job file. This CLI provides the standalone binary.
//
// Usage:
//
//	batchflow run -c job.yaml      # Run a job
//	batchflow validate -c job.yaml # Validate a job file
//	batchflow version              # Show version info
//
// Pass --env-file .env to load variables referenced as ${VAR} in the job file.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "batchflow",
	Short: "Process paginated sources in concurrent batches",
	Long: `batchflow pulls batches from a source and hands them to a sink using
a fixed number of concurrent workers.

Workers share a cursor: each claims the next offset (or page index),
fetches that batch and delivers it, until the source returns an empty
batch. The first error stops the run.

Quick start:
  1. Create a job file (job.yaml)
  2. Run: batchflow run -c job.yaml

Example job:
  name: users-export
  batch:
    size: 100
    concurrency: 4
  source:
    type: http
    url: "https://api.example.com/users?offset={{.Offset}}&limit={{.Size}}"
    items: data.users
  sink:
    type: file
    path: users.ndjson`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

// loadEnvFile loads --env-file into the environment before the job file is
// expanded. Variables already set in the environment win.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this batchflow binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "batchflow %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "load environment variables from this file before expanding the job file")
	rootCmd.AddCommand(versionCmd)
}
