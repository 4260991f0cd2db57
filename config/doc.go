// Package config provides configuration loading and validation for stowdav.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (STOWDAV_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with the STOWDAV_ prefix:
//   - server.addr → STOWDAV_SERVER_ADDR
//   - backend.type → STOWDAV_BACKEND_TYPE
//   - backend.s3.bucket → STOWDAV_BACKEND_S3_BUCKET
//
// # Configuration Structure
//
//   - Server: listen address, concurrency cap, and shutdown timeout
//   - Backend: type (http, s3, minio, fs, memory) plus one subsection per type
//   - Auth: public or basic, with key pairs inline or from a file
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// Validate enforces the struct tags and then the fields the selected
// backend cannot start without, such as backend.s3.bucket.
package config
