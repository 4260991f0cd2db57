package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/config"
	"github.com/sagarc03/stowdav/keybackend"
	"github.com/sagarc03/stowdav/signing"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestOpenOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend func(dir string) config.BackendConfig
		want    string
	}{
		{
			name:    "memory",
			backend: func(string) config.BackendConfig { return config.BackendConfig{Type: "memory"} },
			want:    "memory",
		},
		{
			name: "fs",
			backend: func(dir string) config.BackendConfig {
				return config.BackendConfig{Type: "fs", FS: config.FSBackendConfig{Path: dir}, Prefix: "tenant"}
			},
			want: "fs",
		},
		{
			name: "http",
			backend: func(string) config.BackendConfig {
				return config.BackendConfig{Type: "http", HTTP: config.HTTPBackendConfig{
					Endpoint: "http://localhost:5708",
					Signer:   "stowry",
				}}
			},
			want: "http",
		},
		{
			name: "minio",
			backend: func(string) config.BackendConfig {
				return config.BackendConfig{Type: "minio", MinIO: config.MinIOBackendConfig{
					Endpoint: "localhost:9000",
					Bucket:   "docs",
				}}
			},
			want: "minio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			op, err := openOperator(context.Background(), tt.backend(t.TempDir()))
			require.NoError(t, err)
			t.Cleanup(func() { _ = op.Close() })

			assert.Equal(t, tt.want, op.Info().Name)
			assert.Equal(t, int64(1), op.Refs())
		})
	}
}

func TestOpenOperator_Errors(t *testing.T) {
	t.Parallel()

	_, err := openOperator(context.Background(), config.BackendConfig{Type: "ftp"})
	assert.ErrorIs(t, err, stowdav.ErrInvalidInput)

	_, err = openOperator(context.Background(), config.BackendConfig{Type: "http"})
	assert.ErrorIs(t, err, stowdav.ErrInvalidInput)

	_, err = openOperator(context.Background(), config.BackendConfig{Type: "s3"})
	assert.ErrorIs(t, err, stowdav.ErrInvalidInput)
}

func TestOpenOperator_FSPrefix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	op, err := openOperator(ctx, config.BackendConfig{
		Type:   "fs",
		FS:     config.FSBackendConfig{Path: dir},
		Prefix: "tenant",
	})
	require.NoError(t, err)
	defer func() { _ = op.Close() }()

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hi"), stowdav.OpWrite{}))

	data, err := os.ReadFile(filepath.Join(dir, "tenant", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	s, err := newSigner(config.HTTPBackendConfig{Signer: "anonymous"})
	require.NoError(t, err)
	assert.IsType(t, signing.Anonymous{}, s)

	s, err = newSigner(config.HTTPBackendConfig{Signer: "stowry", AccessKey: "AK", SecretKey: "SK"})
	require.NoError(t, err)
	assert.IsType(t, &signing.Stowry{}, s)

	s, err = newSigner(config.HTTPBackendConfig{Signer: "sigv4", AccessKey: "AK", SecretKey: "SK"})
	require.NoError(t, err)
	assert.IsType(t, &signing.SigV4{}, s)

	_, err = newSigner(config.HTTPBackendConfig{Signer: "hmac"})
	assert.ErrorIs(t, err, stowdav.ErrInvalidInput)
}

func TestNewGateway_BasicAuth(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Backend.Type = "memory"
	cfg.Auth.Mode = "basic"
	cfg.Auth.Keys = keybackend.KeysConfig{
		Inline: []keybackend.KeyPair{{AccessKey: "alice", SecretKey: "s3cret"}},
	}

	svc, fsys, err := newGateway(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer func() { _ = fsys.Close() }()

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	put := func(user, pass string) int {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/notes.txt", strings.NewReader("hello"))
		require.NoError(t, err)
		req.SetBasicAuth(user, pass)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, put("alice", "wrong"))
	assert.Equal(t, http.StatusCreated, put("alice", "s3cret"))

	data, err := fsys.Operator().Read(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestNewGateway_Presigned(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Backend.Type = "memory"
	cfg.Auth.Mode = "basic"
	cfg.Auth.Keys.Inline = []keybackend.KeyPair{{AccessKey: "alice", SecretKey: "s3cret"}}
	cfg.Auth.Presigned.Enabled = true

	svc, fsys, err := newGateway(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer func() { _ = fsys.Close() }()

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/shared.txt", strings.NewReader("hi"))
	require.NoError(t, err)
	require.NoError(t, signing.NewStowry("alice", "s3cret", time.Minute).Sign(context.Background(), req))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/shared.txt", nil)
	require.NoError(t, err)
	require.NoError(t, signing.NewSigV4("alice", "s3cret", "", "", time.Minute).Sign(context.Background(), req))

	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewGateway_BadKeysFile(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Backend.Type = "memory"
	cfg.Auth.Mode = "basic"
	cfg.Auth.Keys.File = filepath.Join(t.TempDir(), "missing.json")

	_, _, err := newGateway(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load auth keys")
}

func TestWriteConfigFile(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Backend.Type = "minio"
	cfg.Backend.MinIO.Endpoint = "localhost:9000"
	cfg.Backend.MinIO.Bucket = "docs"
	cfg.Auth.Mode = "basic"
	cfg.Auth.Keys.Inline = []keybackend.KeyPair{{AccessKey: "alice", SecretKey: "s3cret"}}

	path := filepath.Join(t.TempDir(), "etc", "config.yaml")
	require.NoError(t, writeConfigFile(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load([]string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", loaded.Server.Addr)
	assert.Equal(t, cfg.Server.ShutdownTimeout, loaded.Server.ShutdownTimeout)
	assert.Equal(t, "minio", loaded.Backend.Type)
	assert.Equal(t, "docs", loaded.Backend.MinIO.Bucket)
	assert.Equal(t, cfg.Auth.Keys.Inline, loaded.Auth.Keys.Inline)
}

func TestWriteConfigFile_Invalid(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Backend.Type = "s3"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Error(t, writeConfigFile(path, cfg))

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_Prod(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", "")
	logger.Debug("hidden")
	logger.Info("visible", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, "v", rec["k"])
	assert.Contains(t, rec, "ts")
	assert.NotContains(t, rec, "time")
}

func TestNewLogger_Dev(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&buf, "dev", "")
	logger.Debug("shown in dev")

	assert.Contains(t, buf.String(), "shown in dev")
}
