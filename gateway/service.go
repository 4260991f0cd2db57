package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/webdav"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/signing"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight requests.
const DefaultShutdownTimeout = 30 * time.Second

// methods beyond net/http's set that the WebDAV handler answers.
var davMethods = []string{"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK"}

func init() {
	for _, m := range davMethods {
		chi.RegisterMethod(m)
	}
}

// Config holds the listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods,omitempty"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers,omitempty"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers,omitempty"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials,omitempty"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age,omitempty"`
}

// renamer is implemented by filesystems that can report missing rename
// support up front.
type renamer interface {
	CanRename() bool
}

// Service binds a listener and serves one WebDAV handler.
type Service struct {
	cfg     Config
	fs      webdav.FileSystem
	dav     *webdav.Handler
	logger  *slog.Logger
	cors    CORSConfig
	limiter *Limiter
	auth    Authenticator
	realm   string
	presign signing.Verifier
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for access logs and handler errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORS enables CORS handling.
func WithCORS(cfg CORSConfig) Option {
	return func(s *Service) { s.cors = cfg }
}

// WithMaxConcurrent caps the number of requests in flight. Zero or less
// leaves requests unlimited.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limiter = NewLimiter(n)
		}
	}
}

// WithBasicAuth requires HTTP basic credentials accepted by auth.
func WithBasicAuth(realm string, auth Authenticator) Option {
	return func(s *Service) {
		s.auth = auth
		if realm != "" {
			s.realm = realm
		}
	}
}

// WithPresigned accepts requests presigned for a verifier in place of basic
// credentials. It only has an effect together with WithBasicAuth.
func WithPresigned(v signing.Verifier) Option {
	return func(s *Service) { s.presign = v }
}

// New builds the protocol handler around fsys. Nothing is bound until Serve
// or Listen.
func New(cfg Config, fsys webdav.FileSystem, opts ...Option) (*Service, error) {
	if fsys == nil {
		return nil, fmt.Errorf("new gateway: %w: filesystem is required", stowdav.ErrInvalidInput)
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("new gateway: %w: address is required", stowdav.ErrInvalidInput)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Service{
		cfg:    cfg,
		fs:     fsys,
		logger: slog.Default(),
		realm:  "stowdav",
	}
	for _, o := range opts {
		o(s)
	}

	s.dav = &webdav.Handler{
		FileSystem: fsys,
		LockSystem: webdav.NewMemLS(),
		Logger:     s.logHandlerError,
	}

	return s, nil
}

func (s *Service) logHandlerError(r *http.Request, err error) {
	if err == nil {
		return
	}
	s.logger.Debug("webdav request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"err", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
}

// Handler returns the full middleware chain and routes.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLog(s.logger))
	r.Use(Recover(s.logger))

	if s.cors.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cors.AllowedOrigins,
			AllowedMethods:   s.cors.AllowedMethods,
			AllowedHeaders:   s.cors.AllowedHeaders,
			ExposedHeaders:   s.cors.ExposedHeaders,
			AllowCredentials: s.cors.AllowCredentials,
			MaxAge:           s.cors.MaxAge,
		}))
	}

	if s.limiter != nil {
		r.Use(s.limiter.Limit)
	}

	if s.auth != nil {
		if s.presign != nil {
			r.Use(Presigned(s.presign))
		}
		r.Use(BasicAuth(s.realm, s.auth))
	}

	if rn, ok := s.fs.(renamer); ok && !rn.CanRename() {
		r.Use(rejectMove)
	}

	r.Handle("/", s.dav)
	r.Handle("/*", s.dav)

	return r
}

// Listen binds the configured address.
func (s *Service) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return l, nil
}

// Serve binds the configured address and serves until ctx is cancelled or
// the listener fails. It returns an error only for bind failures, listener
// failures and shutdown timeouts.
func (s *Service) Serve(ctx context.Context) error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, l)
}

// ServeListener serves on l until ctx is cancelled, then shuts down
// gracefully within the configured timeout. It closes l.
func (s *Service) ServeListener(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(l)
	}()

	s.logger.Info("webdav gateway listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down webdav gateway")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh

	return nil
}
