package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowdav/config"
)

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory on the configured backend",
	Long: `List the direct children of a directory on the configured backend.

Examples:
  stowdav ls
  stowdav ls docs/
  stowdav ls --json reports/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	formatter := getFormatter(cmd)

	dir := "/"
	if len(args) > 0 {
		dir = args[0]
	}

	op, err := openOperator(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	defer func() { _ = op.Close() }()

	entries, err := op.List(ctx, dir)
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return &exitError{code: 1}
	}

	return formatter.FormatList(cmd.OutOrStdout(), dir, entries)
}
