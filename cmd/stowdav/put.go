package main

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/config"
)

var putCmd = &cobra.Command{
	Use:   "put [flags] <local-file> <remote-path>",
	Short: "Upload one file to the configured backend",
	Long: `Upload a local file to the configured backend in a single write.

Examples:
  # Upload to the default fs backend
  stowdav put report.pdf docs/report.pdf

  # Upload to a stowry server
  stowdav put --backend http --endpoint http://localhost:5708 a.txt a.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var (
	putContentType string
	putAppend      bool
)

func init() {
	putCmd.Flags().StringVar(&putContentType, "content-type", "", "content type (default: detected from extension)")
	putCmd.Flags().BoolVar(&putAppend, "append", false, "append to the remote object instead of replacing it")
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	local, remote := args[0], args[1]

	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read %s: %w", local, err)
	}

	op, err := openOperator(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	defer func() { _ = op.Close() }()

	formatter := getFormatter(cmd)
	size := int64(len(data))

	if putAppend {
		if err := op.Append(ctx, remote, data); err != nil {
			return fmt.Errorf("append %s: %w", remote, err)
		}
		slog.Debug("appended", "path", remote, "bytes", size)
		return formatter.FormatPut(cmd.OutOrStdout(), PutResult{
			LocalPath:  local,
			RemotePath: remote,
			Size:       size,
			Appended:   true,
		})
	}

	contentType := putContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(local))
	}
	err = op.Write(ctx, remote, data, stowdav.OpWrite{
		ContentLength: &size,
		ContentType:   contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", remote, err)
	}

	slog.Debug("uploaded", "path", remote, "bytes", size, "content_type", contentType)
	return formatter.FormatPut(cmd.OutOrStdout(), PutResult{
		LocalPath:   local,
		RemotePath:  remote,
		ContentType: contentType,
		Size:        size,
	})
}
