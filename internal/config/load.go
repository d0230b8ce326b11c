package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is the default configuration filename.
const DefaultConfigFilename = "k8tenant.yaml"

// ErrConfigNotFound is returned by FindConfigFile when no file exists.
var ErrConfigNotFound = errors.New("config file not found")

// Environment variables overriding file values.
const (
	EnvNamespace   = "K8TENANT_NAMESPACE"
	EnvStateDir    = "K8TENANT_STATE_DIR"
	EnvArchiveDir  = "K8TENANT_ARCHIVE_DIR"
	EnvConcurrency = "K8TENANT_STORE_CONCURRENCY"
	EnvWaitInt     = "K8TENANT_WAIT_INTERVAL"
	EnvWaitCount   = "K8TENANT_WAIT_ATTEMPTS"
	EnvKubeconfig  = "KUBECONFIG"
	EnvACMEEmail   = "ACME_EMAIL"
)

// Load reads path over the defaults, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Resolve loads the explicit path when given, otherwise the nearest
// k8tenant.yaml, otherwise the defaults. Environment overrides apply in
// every case.
func Resolve(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}

	path, err := FindConfigFile()
	switch {
	case err == nil:
		return Load(path)
	case errors.Is(err, ErrConfigNotFound):
		cfg := Default()
		applyEnv(cfg, os.Getenv)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	default:
		return nil, err
	}
}

// LoadFromBytes parses data over the defaults without environment overrides.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// FindConfigFile searches the current directory and its parents for k8tenant.yaml.
func FindConfigFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return findUpwards(cwd)
}

func findUpwards(dir string) (string, error) {
	for {
		path := filepath.Join(dir, DefaultConfigFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, DefaultConfigFilename)
		}
		dir = parent
	}
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// that are already set keep their value.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvNamespace); v != "" {
		cfg.Namespace = v
	}
	if v := getenv(EnvStateDir); v != "" {
		cfg.StateDir = v
	}
	if v := getenv(EnvArchiveDir); v != "" {
		cfg.ArchiveDir = v
	}
	if v := getenv(EnvConcurrency); v != "" {
		cfg.Store.Concurrency = v
	}
	if cfg.Kubeconfig == "" {
		cfg.Kubeconfig = getenv(EnvKubeconfig)
	}
	if cfg.ACME.Email == "" {
		cfg.ACME.Email = getenv(EnvACMEEmail)
	}
	cfg.Wait.Interval = parseDuration(getenv(EnvWaitInt), cfg.Wait.Interval)
	cfg.Wait.Attempts = parseInt(getenv(EnvWaitCount), cfg.Wait.Attempts)
}

// parseDuration returns defaultVal when val is empty or malformed.
func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseInt returns defaultVal when val is empty or malformed.
func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
