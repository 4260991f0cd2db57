package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowdav/config"
	"github.com/sagarc03/stowdav/davfs"
	"github.com/sagarc03/stowdav/gateway"
	"github.com/sagarc03/stowdav/keybackend"
	"github.com/sagarc03/stowdav/signing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebDAV gateway",
	Long: `Start the WebDAV gateway on server.addr.

The server stops on SIGINT or SIGTERM, giving in-flight requests up to
server.shutdown_timeout to finish.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: :4918, env: STOWDAV_SERVER_ADDR)")
	serveCmd.Flags().Int("max-concurrent", 0, "maximum requests in flight (env: STOWDAV_SERVER_MAX_CONCURRENT)")
	serveCmd.Flags().String("auth", "", "auth mode: public, basic (env: STOWDAV_AUTH_MODE)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, fsys, err := newGateway(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := fsys.Close(); err != nil {
			slog.Error("close backend", "err", err)
		}
	}()

	slog.Info("starting gateway",
		"addr", cfg.Server.Addr,
		"backend", fsys.Operator().Info().Name,
		"auth", cfg.Auth.Mode,
	)

	if err := svc.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	slog.Info("gateway stopped")
	return nil
}

// newGateway wires the configured backend into a davfs filesystem and a
// gateway Service. The caller owns the returned FS and must Close it.
func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gateway.Service, *davfs.FS, error) {
	op, err := openOperator(ctx, cfg.Backend)
	if err != nil {
		return nil, nil, err
	}
	fsys := davfs.New(op)

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithCORS(cfg.CORS),
		gateway.WithMaxConcurrent(cfg.Server.MaxConcurrent),
	}

	if cfg.Auth.Mode == "basic" {
		store, err := keybackend.NewSecretStore(cfg.Auth.Keys)
		if err != nil {
			_ = fsys.Close()
			return nil, nil, fmt.Errorf("load auth keys: %w", err)
		}
		logger.Info("basic auth enabled", "keys", store.Len())
		opts = append(opts, gateway.WithBasicAuth(cfg.Auth.Realm, store))

		if p := cfg.Auth.Presigned; p.Enabled {
			opts = append(opts, gateway.WithPresigned(signing.AnyVerifier{
				signing.NewStowryVerifier(store.Lookup),
				signing.NewSigV4Verifier(p.Region, p.Service, store.Lookup),
			}))
		}
	}

	svc, err := gateway.New(gateway.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, fsys, opts...)
	if err != nil {
		_ = fsys.Close()
		return nil, nil, err
	}

	return svc, fsys, nil
}
