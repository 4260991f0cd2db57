package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/stowdav/config"
	"github.com/sagarc03/stowdav/keybackend"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.yaml interactively",
	Long: `Prompt for the listen address, backend, and auth mode, then write
a configuration file that "stowdav serve" can read.

You will be prompted for:
  - Listen address
  - Backend type and its connection settings
  - Auth mode, and one key pair when basic auth is chosen`,
	Args: cobra.NoArgs,
	// The file being written may not exist or validate yet.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("", "info")
		return nil
	},
	RunE: runInit,
}

var (
	initOutput string
	initForce  bool
)

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "config.yaml", "path of the config file to write")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(initOutput); err == nil && !initForce {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", initOutput),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	cfg, err := config.Default()
	if err != nil {
		return err
	}

	if err := promptConfig(cfg); err != nil {
		return handlePromptError(err)
	}

	if err := writeConfigFile(initOutput, cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", initOutput)
	fmt.Println("Start the gateway with: stowdav serve --config", initOutput)
	return nil
}

func promptConfig(cfg *config.Config) error {
	addr, err := (&promptui.Prompt{
		Label:   "Listen address",
		Default: cfg.Server.Addr,
		Validate: func(input string) error {
			_, _, err := net.SplitHostPort(input)
			return err
		},
	}).Run()
	if err != nil {
		return err
	}
	cfg.Server.Addr = addr

	_, backend, err := (&promptui.Select{
		Label: "Backend",
		Items: []string{"fs", "http", "s3", "minio", "memory"},
	}).Run()
	if err != nil {
		return err
	}
	cfg.Backend.Type = backend

	if err := promptBackend(&cfg.Backend); err != nil {
		return err
	}

	_, mode, err := (&promptui.Select{
		Label: "Auth mode",
		Items: []string{"public", "basic"},
	}).Run()
	if err != nil {
		return err
	}
	cfg.Auth.Mode = mode

	if mode == "basic" {
		accessKey, err := promptText("Username", "", true)
		if err != nil {
			return err
		}
		secretKey, err := (&promptui.Prompt{Label: "Password", Mask: '*', Validate: required}).Run()
		if err != nil {
			return err
		}
		cfg.Auth.Keys.Inline = []keybackend.KeyPair{{AccessKey: accessKey, SecretKey: secretKey}}

		_, err = (&promptui.Prompt{Label: "Accept presigned URLs", IsConfirm: true}).Run()
		if err != nil && !errors.Is(err, promptui.ErrAbort) {
			return err
		}
		cfg.Auth.Presigned.Enabled = err == nil
	}

	return nil
}

func promptBackend(b *config.BackendConfig) error {
	var err error
	switch b.Type {
	case "fs":
		b.FS.Path, err = promptText("Storage directory", b.FS.Path, true)
	case "http":
		b.HTTP.Endpoint, err = (&promptui.Prompt{
			Label:    "Endpoint URL",
			Default:  "http://localhost:5708",
			Validate: validateURL,
		}).Run()
		if err != nil {
			return err
		}
		_, b.HTTP.Signer, err = (&promptui.Select{
			Label: "Request signing",
			Items: []string{"anonymous", "stowry", "sigv4"},
		}).Run()
		if err != nil || b.HTTP.Signer == "anonymous" {
			return err
		}
		b.HTTP.AccessKey, b.HTTP.SecretKey, err = promptKeys()
	case "s3":
		if b.S3.Bucket, err = promptText("Bucket", "", true); err != nil {
			return err
		}
		if b.S3.Region, err = promptText("Region", b.S3.Region, true); err != nil {
			return err
		}
		b.S3.AccessKey, b.S3.SecretKey, err = promptKeys()
	case "minio":
		if b.MinIO.Endpoint, err = promptText("Endpoint (host:port)", "localhost:9000", true); err != nil {
			return err
		}
		if b.MinIO.Bucket, err = promptText("Bucket", "", true); err != nil {
			return err
		}
		b.MinIO.AccessKey, b.MinIO.SecretKey, err = promptKeys()
	}
	return err
}

func promptKeys() (string, string, error) {
	accessKey, err := promptText("Access Key", "", false)
	if err != nil {
		return "", "", err
	}
	secretKey, err := (&promptui.Prompt{Label: "Secret Key", Mask: '*'}).Run()
	if err != nil {
		return "", "", err
	}
	return accessKey, secretKey, nil
}

func promptText(label, def string, mandatory bool) (string, error) {
	p := promptui.Prompt{Label: label, Default: def}
	if mandatory {
		p.Validate = required
	}
	return p.Run()
}

func required(input string) error {
	if input == "" {
		return errors.New("value is required")
	}
	return nil
}

func validateURL(input string) error {
	u, err := url.Parse(input)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	return nil
}

// writeConfigFile validates cfg and writes it as YAML. Files holding
// secrets are written owner-only.
func writeConfigFile(path string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
