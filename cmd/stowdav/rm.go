package main

import (
	"github.com/spf13/cobra"

	"github.com/sagarc03/stowdav/config"
)

var rmCmd = &cobra.Command{
	Use:   "rm <remote-path> [remote-path...]",
	Short: "Delete files from the configured backend",
	Long: `Delete one or more files from the configured backend. Missing files
are not an error.

Examples:
  stowdav rm docs/old.txt
  stowdav rm -q tmp/a.txt tmp/b.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	op, err := openOperator(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	defer func() { _ = op.Close() }()

	results := make([]DeleteResult, len(args))
	failed := false
	for i, p := range args {
		results[i] = DeleteResult{Path: p, Err: op.Delete(ctx, p)}
		failed = failed || results[i].Err != nil
	}

	if err := getFormatter(cmd).FormatDelete(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if failed {
		return &exitError{code: 1}
	}
	return nil
}
