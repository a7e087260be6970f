package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the file Load and the watcher look for in the
// working directory.
const ConfigFileName = "config.yaml"

// Bootstrap writes a config.yaml with the default settings if none
// exists, so a first run leaves an editable file behind for the
// watcher to pick up. Never overwrites an existing file.
func Bootstrap(cfg *Config, logger *zap.Logger) error {
	if _, err := os.Stat(ConfigFileName); err == nil {
		logger.Debug("config file present", zap.String("path", ConfigFileName))
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	if err := os.WriteFile(ConfigFileName, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", ConfigFileName, err)
	}

	logger.Info("wrote default config file", zap.String("path", ConfigFileName))
	return nil
}
