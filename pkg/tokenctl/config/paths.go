package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "tokenctl"
	defaultConfigFile    = "config.yaml"
)

// DefaultConfigPath honours TOKENCTL_CONFIG, then the user config dir.
func DefaultConfigPath() string {
	if env := os.Getenv("TOKENCTL_CONFIG"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tokenctl", defaultConfigFile)
}
