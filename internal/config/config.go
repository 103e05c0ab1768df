// Package config provides configuration loading and management for the
// sync daemon.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// remotePasswordEnvVar is the environment fallback for the remote store
// password when no password file is configured.
const remotePasswordEnvVar = "NEUPHAM_REMOTE_PASSWORD"

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// InstanceName identifies this clinic/shop installation; it defaults
	// to "default" if not specified
	InstanceName string `yaml:"instanceName,omitempty"`

	// Local configures the offline SQLite store
	Local LocalStoreConfig `yaml:"local"`

	// Remote configures the online PostgreSQL store
	Remote *RemoteStoreConfig `yaml:"remote"`

	// Sync holds optional engine tunables
	Sync *SyncConfig `yaml:"sync,omitempty"`
}

// LocalStoreConfig defines the offline store settings
type LocalStoreConfig struct {
	// Path is the SQLite database file path
	Path string `yaml:"path"`
}

// RemoteStoreConfig defines the online store connection settings
type RemoteStoreConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments; the
	// file should contain only the password with optional trailing
	// whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require,
	// verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of pooled connections
	MaxConns int32 `yaml:"maxConns,omitempty"`
}

// SyncConfig defines engine tunables
type SyncConfig struct {
	// ProbeMaxTries is how many connectivity attempts a run makes before
	// failing critically. Defaults to 3.
	ProbeMaxTries uint `yaml:"probeMaxTries,omitempty"`
}

// GetInstanceName returns the configured instance name or "default"
func (c *Config) GetInstanceName() string {
	if c.InstanceName == "" {
		return "default"
	}
	return c.InstanceName
}

// ProbeMaxTries returns the configured probe attempt count or the default
func (c *Config) ProbeMaxTries() uint {
	if c.Sync == nil || c.Sync.ProbeMaxTries == 0 {
		return 3
	}
	return c.Sync.ProbeMaxTries
}

// GetPassword returns the remote store password using the following
// priority: password file, then environment variable.
func (r *RemoteStoreConfig) GetPassword() (string, error) {
	if r.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(r.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", r.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(remotePasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no remote store password configured: set passwordFile or the %s environment variable",
		remotePasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper
// password handling.
func (r *RemoteStoreConfig) GetConnectionString() (string, error) {
	password, err := r.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := r.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connURL := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(r.User, password),
		Host:   fmt.Sprintf("%s:%d", r.Host, r.Port),
		Path:   r.Database,
	}
	q := connURL.Query()
	q.Set("sslmode", sslMode)
	if r.MaxConns > 0 {
		q.Set("pool_max_conns", fmt.Sprintf("%d", r.MaxConns))
	}
	connURL.RawQuery = q.Encode()

	return connURL.String(), nil
}

// LoadConfig loads and validates configuration
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks that the configuration is complete enough to run
func (c *Config) Validate() error {
	if c.Local.Path == "" {
		return fmt.Errorf("local store path is required")
	}

	if c.Remote == nil {
		return fmt.Errorf("remote store configuration is required")
	}
	if c.Remote.Host == "" {
		return fmt.Errorf("remote store host is required")
	}
	if c.Remote.Port == 0 {
		return fmt.Errorf("remote store port is required")
	}
	if c.Remote.User == "" {
		return fmt.Errorf("remote store user is required")
	}
	if c.Remote.Database == "" {
		return fmt.Errorf("remote store database name is required")
	}

	return nil
}
