package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowdav/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "stowdav",
	Short:   "WebDAV gateway for object storage",
	Long: `stowdav serves a WebDAV share backed by an object store: a stowry
server, Amazon S3, MinIO, a local directory, or memory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "backend type: http, s3, minio, fs, memory (env: STOWDAV_BACKEND_TYPE)")
	rootCmd.PersistentFlags().String("endpoint", "", "http backend endpoint (env: STOWDAV_BACKEND_HTTP_ENDPOINT)")
	rootCmd.PersistentFlags().String("fs-path", "", "fs backend directory (env: STOWDAV_BACKEND_FS_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: STOWDAV_LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("json", false, "output command results as JSON")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-essential output")
}

// loadConfig reads the configuration, installs the logger, and stores the
// config in the command context for subcommands.
func loadConfig(cmd *cobra.Command) error {
	files, _ := cmd.Flags().GetStringSlice("config")

	cfg, err := config.Load(files, cmd.Flags())
	if err != nil {
		return err
	}

	setupLogging(cfg.Env, cfg.Log.Level)
	cmd.SetContext(config.WithContext(cmd.Context(), cfg))
	return nil
}

// getFormatter returns the formatter selected by the --json and --quiet flags.
func getFormatter(cmd *cobra.Command) Formatter {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	return newFormatter(jsonOutput, quiet)
}

// exitError carries an exit code for failures the command already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
