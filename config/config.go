package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/stowdav/gateway"
	"github.com/sagarc03/stowdav/keybackend"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for stowdav.
type Config struct {
	Env     string             `mapstructure:"env" yaml:"env,omitempty"`
	Server  ServerConfig       `mapstructure:"server" yaml:"server"`
	Backend BackendConfig      `mapstructure:"backend" yaml:"backend"`
	Auth    AuthConfig         `mapstructure:"auth" yaml:"auth"`
	CORS    gateway.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Log     LogConfig          `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds the gateway listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	MaxConcurrent   int           `mapstructure:"max_concurrent" yaml:"max_concurrent" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`
}

// BackendConfig selects the storage backend behind the Operator. Only the
// subsection matching Type is read.
type BackendConfig struct {
	Type   string             `mapstructure:"type" yaml:"type" validate:"required,oneof=http s3 minio fs memory"`
	HTTP   HTTPBackendConfig  `mapstructure:"http" yaml:"http,omitempty"`
	S3     S3BackendConfig    `mapstructure:"s3" yaml:"s3,omitempty"`
	MinIO  MinIOBackendConfig `mapstructure:"minio" yaml:"minio,omitempty"`
	FS     FSBackendConfig    `mapstructure:"fs" yaml:"fs,omitempty"`
	Prefix string             `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// HTTPBackendConfig configures a plain HTTP object store.
type HTTPBackendConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	Signer    string        `mapstructure:"signer" yaml:"signer" validate:"oneof=anonymous stowry sigv4"`
	AccessKey string        `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string        `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	Region    string        `mapstructure:"region" yaml:"region,omitempty"`
	Service   string        `mapstructure:"service" yaml:"service,omitempty"`
	Expires   time.Duration `mapstructure:"expires" yaml:"expires,omitempty" validate:"min=0"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty" validate:"min=0"`
}

// S3BackendConfig configures an Amazon S3 bucket.
type S3BackendConfig struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Region       string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKey    string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style,omitempty"`
}

// MinIOBackendConfig configures a MinIO bucket.
type MinIOBackendConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	Region    string `mapstructure:"region" yaml:"region,omitempty"`
	Secure    bool   `mapstructure:"secure" yaml:"secure,omitempty"`
}

// FSBackendConfig configures a local directory.
type FSBackendConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AuthConfig holds gateway authentication configuration.
type AuthConfig struct {
	Mode  string                `mapstructure:"mode" yaml:"mode" validate:"required,oneof=public basic"`
	Realm string                `mapstructure:"realm" yaml:"realm,omitempty"`
	Keys  keybackend.KeysConfig `mapstructure:"keys" yaml:"keys,omitempty"`

	// Presigned accepts stowry and SigV4 presigned URLs signed with one of
	// Keys in place of basic credentials.
	Presigned PresignedConfig `mapstructure:"presigned" yaml:"presigned,omitempty"`
}

// PresignedConfig configures presigned URL verification.
type PresignedConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Region  string `mapstructure:"region" yaml:"region,omitempty"`
	Service string `mapstructure:"service" yaml:"service,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"addr":           "server.addr",
	"max-concurrent": "server.max_concurrent",
	"backend":        "backend.type",
	"endpoint":       "backend.http.endpoint",
	"fs-path":        "backend.fs.path",
	"auth":           "auth.mode",
	"log-level":      "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Keys that
// are only ever set from the environment still need an entry here, since
// Unmarshal only sees keys viper already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.addr", ":4918")
	v.SetDefault("server.max_concurrent", 256)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("backend.type", "fs")
	v.SetDefault("backend.prefix", "")
	v.SetDefault("backend.http.endpoint", "")
	v.SetDefault("backend.http.access_key", "")
	v.SetDefault("backend.http.secret_key", "")
	v.SetDefault("backend.s3.bucket", "")
	v.SetDefault("backend.s3.endpoint", "")
	v.SetDefault("backend.s3.access_key", "")
	v.SetDefault("backend.s3.secret_key", "")
	v.SetDefault("backend.s3.use_path_style", false)
	v.SetDefault("backend.minio.endpoint", "")
	v.SetDefault("backend.minio.bucket", "")
	v.SetDefault("backend.minio.access_key", "")
	v.SetDefault("backend.minio.secret_key", "")
	v.SetDefault("backend.minio.secure", false)
	v.SetDefault("backend.http.signer", "anonymous")
	v.SetDefault("backend.http.region", "us-east-1")
	v.SetDefault("backend.http.service", "s3")
	v.SetDefault("backend.http.expires", 15*time.Minute)
	v.SetDefault("backend.http.timeout", 30*time.Second)
	v.SetDefault("backend.s3.region", "us-east-1")
	v.SetDefault("backend.minio.region", "us-east-1")
	v.SetDefault("backend.fs.path", "./data")

	v.SetDefault("auth.mode", "public")
	v.SetDefault("auth.realm", "stowdav")
	v.SetDefault("auth.keys.file", "")
	v.SetDefault("auth.presigned.enabled", false)
	v.SetDefault("auth.presigned.region", "us-east-1")
	v.SetDefault("auth.presigned.service", "s3")

	v.SetDefault("cors.enabled", false)

	v.SetDefault("log.level", "info")
}

// Default returns the configuration Load produces with no files, flags, or
// environment.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("STOWDAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the per-backend required fields.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	var missing []string
	switch c.Backend.Type {
	case "s3":
		if c.Backend.S3.Bucket == "" {
			missing = append(missing, "backend.s3.bucket")
		}
	case "minio":
		if c.Backend.MinIO.Endpoint == "" {
			missing = append(missing, "backend.minio.endpoint")
		}
		if c.Backend.MinIO.Bucket == "" {
			missing = append(missing, "backend.minio.bucket")
		}
	case "http":
		if c.Backend.HTTP.Endpoint == "" {
			missing = append(missing, "backend.http.endpoint")
		}
	case "fs":
		if c.Backend.FS.Path == "" {
			missing = append(missing, "backend.fs.path")
		}
	}
	if c.Backend.Type == "http" && c.Backend.HTTP.Signer != "anonymous" &&
		(c.Backend.HTTP.AccessKey == "" || c.Backend.HTTP.SecretKey == "") {
		missing = append(missing, "backend.http.access_key", "backend.http.secret_key")
	}
	if c.Auth.Mode == "basic" && len(c.Auth.Keys.Inline) == 0 && c.Auth.Keys.File == "" {
		missing = append(missing, "auth.keys")
	}

	if len(missing) > 0 {
		return fmt.Errorf("validate config: missing %s", strings.Join(missing, ", "))
	}

	return nil
}
