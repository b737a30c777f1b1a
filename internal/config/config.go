package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/efota/efu/internal/object"
)

// Config holds server credentials and transfer parameters shared by every
// subcommand.
type Config struct {
	// ServerURL is the base URL of the update server.
	ServerURL string `yaml:"server_url"`
	// AccessID identifies the credential used to sign requests.
	AccessID string `yaml:"access_id"`
	// AccessSecret is the shared secret used to sign requests. It is
	// never sent over the wire.
	AccessSecret string `yaml:"access_secret"`
	// ChunkSize is the read granularity for hashing and uploads, in bytes.
	ChunkSize int64 `yaml:"chunk_size"`
	// Timeout is the duration for server calls.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for server settings.
	DefaultConfigFilename = ".efu.yaml"

	// DefaultTimeout is the default duration for server calls.
	DefaultTimeout = 10 * time.Minute

	// DefaultFilePermissions keeps the secret readable by the owner only.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerURLRequired is returned when the server URL is missing.
	errServerURLRequired = errors.New("server URL must be provided")
	// errCredentialsRequired is returned when either credential half is missing.
	errCredentialsRequired = errors.New("access ID and access secret must both be provided")
)

// DefaultPath resolves the per-user settings location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigFilename
	}

	return filepath.Join(home, DefaultConfigFilename)
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultPath()
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg.ServerURL == "" {
		return errServerURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	if cfg.AccessID == "" || cfg.AccessSecret == "" {
		return errCredentialsRequired
	}

	// Set default chunk size if not specified
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = object.DefaultChunkSize
	}

	// Set default timeout if not specified
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}
