// Package config holds the recognized configuration surface. Settings
// live in a YAML file (~/.guidesync/config.yaml by default) that the
// configure command edits; environment variables override the file,
// which keeps daemon deployments twelve-factor friendly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// IntervalMinMinutes and IntervalMaxMinutes bound the interval sync
	// period: one minute to one day.
	IntervalMinMinutes = 1
	IntervalMaxMinutes = 1440

	// DefaultIntervalMinutes is the interval sync period when none is
	// configured.
	DefaultIntervalMinutes = 30

	// configDirPerm is the permission mode for ~/.guidesync/.
	configDirPerm = fs.FileMode(0o700)

	// configFilePerm keeps the config file private; it carries the
	// remote token.
	configFilePerm = fs.FileMode(0o600)
)

// Config is the full configuration surface.
type Config struct {
	// RemoteToken authenticates every remote store call. An empty token
	// surfaces as an auth failure at call time, distinguishable from
	// "replica not found".
	RemoteToken string `yaml:"remoteToken" env:"GUIDESYNC_TOKEN"`

	// RemoteID pins the remote replica identity. Usually left empty and
	// learned from the first upload, which persists it to the state db.
	RemoteID string `yaml:"remoteId" env:"GUIDESYNC_REMOTE_ID"`

	// RemoteBaseURL is the replica store endpoint.
	RemoteBaseURL string `yaml:"remoteBaseURL" env:"GUIDESYNC_REMOTE_BASE_URL"`

	// ArtifactName is the managed guide's filename.
	ArtifactName string `yaml:"artifactName" env:"GUIDESYNC_ARTIFACT_NAME"`

	// WorkDir is the workspace root the artifact lives under.
	WorkDir string `yaml:"workDir" env:"GUIDESYNC_WORKDIR"`

	// AutoExclude adds the artifact path to .gitignore after downloads.
	AutoExclude bool `yaml:"autoExclude" env:"GUIDESYNC_AUTO_EXCLUDE"`

	// AutoCheckOnStart runs one reconciliation shortly after startup.
	AutoCheckOnStart bool `yaml:"autoCheckOnStart" env:"GUIDESYNC_AUTO_CHECK_ON_START"`

	// IntervalSyncEnabled and IntervalSyncMinutes control the recurring
	// timer trigger.
	IntervalSyncEnabled bool `yaml:"intervalSyncEnabled" env:"GUIDESYNC_INTERVAL_SYNC_ENABLED"`
	IntervalSyncMinutes int  `yaml:"intervalSyncMinutes" env:"GUIDESYNC_INTERVAL_SYNC_MINUTES"`

	// ChangeSyncEnabled reconciles on local artifact modification.
	ChangeSyncEnabled bool `yaml:"changeSyncEnabled" env:"GUIDESYNC_CHANGE_SYNC_ENABLED"`

	// NotificationsEnabled announces autonomous downloads and uploads.
	NotificationsEnabled bool `yaml:"notificationsEnabled" env:"GUIDESYNC_NOTIFICATIONS_ENABLED"`

	// Environment controls log format: "development" (text) or
	// "production" (JSON).
	Environment string `yaml:"environment" env:"GUIDESYNC_ENVIRONMENT"`

	// LogFile, when set, mirrors logs to a rotated file. Used by the
	// daemon so autonomous passes leave a trail.
	LogFile string `yaml:"logFile" env:"GUIDESYNC_LOG_FILE"`
}

// Defaults returns the documented default configuration.
func Defaults() *Config {
	return &Config{
		RemoteBaseURL:        "https://guides.alexjbarnes.com",
		ArtifactName:         "GUIDE.md",
		WorkDir:              ".",
		AutoExclude:          true,
		AutoCheckOnStart:     true,
		IntervalSyncEnabled:  true,
		IntervalSyncMinutes:  DefaultIntervalMinutes,
		ChangeSyncEnabled:    true,
		NotificationsEnabled: false,
		Environment:          "development",
	}
}

// DefaultPath returns ~/.guidesync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".guidesync", "config.yaml"), nil
}

// Load builds the effective configuration: defaults, overlaid by the
// YAML file at path (missing file is fine), overlaid by environment
// variables. A .env file in the working directory is honoured first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// First run: defaults plus environment.
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	// Resolve WorkDir to an absolute path at load time. The artifact
	// store relies on it for path checks.
	absDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving workdir to absolute path: %w", err)
	}

	cfg.WorkDir = absDir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks option ranges. Token and remote ID may legitimately be
// empty (first run), so they are not validated here.
func (c *Config) Validate() error {
	if c.RemoteBaseURL == "" {
		return fmt.Errorf("remoteBaseURL must not be empty")
	}

	if c.ArtifactName == "" {
		return fmt.Errorf("artifactName must not be empty")
	}

	if c.IntervalSyncMinutes < IntervalMinMinutes || c.IntervalSyncMinutes > IntervalMaxMinutes {
		return fmt.Errorf("intervalSyncMinutes %d out of range [%d, %d]",
			c.IntervalSyncMinutes, IntervalMinMinutes, IntervalMaxMinutes)
	}

	return nil
}

// Save writes the configuration to the YAML file at path, creating the
// directory when needed. The file is written with owner-only permissions
// because it carries the remote token.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
