// Package config loads the jailprov configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Iocage   IocageConfig   `yaml:"iocage"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// IocageConfig holds the jail tool configuration
type IocageConfig struct {
	Path string `yaml:"path"`
}

// DefaultsConfig holds provisioning values applied when the matching flag
// is not given
type DefaultsConfig struct {
	Release string `yaml:"release"`
	Gateway string `yaml:"gateway"`
	SSH     bool   `yaml:"ssh"`
	Thick   bool   `yaml:"thick"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig is the built-in configuration used when no file is found.
var DefaultConfig = Config{
	Iocage:  IocageConfig{Path: "iocage"},
	Logging: LoggingConfig{Level: "info"},
}

// LoadConfig loads the configuration from file and environment variables.
//
// Search order when explicitPath is empty:
//  1. Path specified in the JAILPROV_CONFIG environment variable
//  2. /usr/local/etc/jailprov.yml
//  3. ./jailprov.yml
//  4. /etc/jailprov/jailprov.yml
//
// A missing file is not an error; built-in defaults apply. An explicitPath
// that cannot be read is an error, since the caller asked for it.
// Applies the JAILPROV_LOG_LEVEL environment override and validates the
// final configuration. Returns (config, configPath, error) where configPath
// names the source of the configuration.
func LoadConfig(explicitPath string) (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config, explicitPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if val := os.Getenv("JAILPROV_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from the first available YAML file.
func loadFromFile(config *Config, explicitPath string) (string, error) {
	if explicitPath != "" {
		data, err := os.ReadFile(explicitPath)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", explicitPath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	configPaths := []string{
		os.Getenv("JAILPROV_CONFIG"),
		"/usr/local/etc/jailprov.yml",
		"./jailprov.yml",
		"/etc/jailprov/jailprov.yml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// Validate checks the configuration for values the CLI cannot work with.
func (c *Config) Validate() error {
	if c.Iocage.Path == "" {
		return fmt.Errorf("iocage path cannot be empty")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Defaults.Gateway != "" && net.ParseIP(c.Defaults.Gateway) == nil {
		return fmt.Errorf("invalid default gateway address: %s", c.Defaults.Gateway)
	}

	return nil
}
