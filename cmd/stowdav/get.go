package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/config"
)

var getCmd = &cobra.Command{
	Use:   "get <remote-path> [local-path]",
	Short: "Download a file from the configured backend",
	Long: `Download a file from the configured backend. Without a local path the
file is written to the base name of the remote path in the current directory.

Examples:
  stowdav get docs/report.pdf
  stowdav get docs/report.pdf ./report.pdf
  stowdav get --stdout config.json | jq .
  stowdav get --offset 100 --length 50 logs/app.log -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var (
	getOutput string
	getStdout bool
	getOffset int64
	getLength int64
)

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output file path")
	getCmd.Flags().BoolVar(&getStdout, "stdout", false, "write to stdout")
	getCmd.Flags().Int64Var(&getOffset, "offset", 0, "first byte to read")
	getCmd.Flags().Int64Var(&getLength, "length", 0, "number of bytes to read (default: to end)")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	formatter := getFormatter(cmd)
	remote := args[0]

	local := ""
	if len(args) > 1 {
		local = args[1]
	}
	if getOutput != "" {
		local = getOutput
	}
	if getStdout {
		local = "-"
	}
	if local == "" {
		local = filepath.Base(remote)
	}

	op, err := openOperator(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	defer func() { _ = op.Close() }()

	rc, err := op.Reader(ctx, remote, stowdav.OpRead{Offset: getOffset, Length: getLength})
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return &exitError{code: 1}
	}
	defer func() { _ = rc.Close() }()

	var (
		dst    io.Writer = cmd.OutOrStdout()
		report           = cmd.OutOrStdout()
	)
	if local == "-" {
		report = cmd.ErrOrStderr()
	} else {
		f, err := os.Create(local)
		if err != nil {
			return fmt.Errorf("create %s: %w", local, err)
		}
		defer func() { _ = f.Close() }()
		dst = f
	}

	n, err := io.Copy(dst, rc)
	if err != nil {
		return fmt.Errorf("get %s: %w", remote, err)
	}

	return formatter.FormatGet(report, GetResult{RemotePath: remote, LocalPath: local, Size: n})
}
