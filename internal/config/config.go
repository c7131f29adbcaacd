// Package config owns the install-root layout and user settings.
//
// Every component receives a *Config explicitly; nothing reads the
// install-root location from ambient globals after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// EnvPgetHome overrides the default install root (~/.pget).
	EnvPgetHome = "PGET_HOME"

	// DefaultOrg is the GitHub organization hosting pynosaur apps.
	DefaultOrg = "pynosaur"

	// MetadataFileName is the per-app install record inside helpers/<app>/.
	MetadataFileName = ".pget-metadata.json"

	// SettingsFileName is the optional user settings file under the root.
	SettingsFileName = "config.toml"
)

// Config describes the install-root directory layout.
type Config struct {
	HomeDir    string // $PGET_HOME (default ~/.pget)
	BinDir     string // $PGET_HOME/bin — installed executables
	HelpersDir string // $PGET_HOME/helpers — per-app metadata, docs, data
	CacheDir   string // $PGET_HOME/cache — scratch space for downloads

	Settings Settings
}

// Settings holds optional user configuration from $PGET_HOME/config.toml.
// A missing file leaves the defaults in place; a malformed file is an error
// so that a typo does not silently point at the wrong registry.
type Settings struct {
	// Org is the GitHub organization acting as the app registry.
	Org string `toml:"org"`
}

// Default returns the configuration for the standard install root,
// honoring PGET_HOME and loading settings if present.
func Default() (*Config, error) {
	home := os.Getenv(EnvPgetHome)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, ".pget")
	}
	return New(home)
}

// New returns the configuration rooted at the given directory.
func New(home string) (*Config, error) {
	cfg := &Config{
		HomeDir:    home,
		BinDir:     filepath.Join(home, "bin"),
		HelpersDir: filepath.Join(home, "helpers"),
		CacheDir:   filepath.Join(home, "cache"),
		Settings:   Settings{Org: DefaultOrg},
	}

	settingsPath := filepath.Join(home, SettingsFileName)
	if _, err := os.Stat(settingsPath); err == nil {
		if _, err := toml.DecodeFile(settingsPath, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", settingsPath, err)
		}
		if cfg.Settings.Org == "" {
			cfg.Settings.Org = DefaultOrg
		}
	}

	return cfg, nil
}

// EnsureDirectories creates the install-root directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.BinDir, c.HelpersDir, c.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BinaryPath returns the installed executable path for an app.
func (c *Config) BinaryPath(name string) string {
	return filepath.Join(c.BinDir, name)
}

// AppDir returns the helper directory for an app.
func (c *Config) AppDir(name string) string {
	return filepath.Join(c.HelpersDir, name)
}

// DocDir returns the documentation directory for an app.
func (c *Config) DocDir(name string) string {
	return filepath.Join(c.AppDir(name), "doc")
}

// MetadataPath returns the install record path for an app.
func (c *Config) MetadataPath(name string) string {
	return filepath.Join(c.AppDir(name), MetadataFileName)
}
