// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads and persists the Quartermaster configuration file.
// Configuration is resolved by viper from (in order of precedence) CLI flags,
// environment variables prefixed with QUARTERMASTER_, an explicit --config
// file, and quartermaster.yaml in the user, system, or current directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the application configuration persisted to quartermaster.yaml.
type Config struct {
	Database struct {
		Type string `mapstructure:"type" yaml:"type"`
		Dsn  string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"database" yaml:"database"`

	// Provision holds the defaults for the provisioning target itself,
	// as opposed to the journal database above.
	Provision struct {
		// Plan is the path of a YAML plan file. Empty means the built-in plan.
		Plan string `mapstructure:"plan" yaml:"plan"`
		// Target is "local" or user@host for SSH provisioning.
		Target string `mapstructure:"target" yaml:"target"`
		// ProxyClient is the VPN/proxy client binary driven by the proxy phase.
		ProxyClient string `mapstructure:"proxy_client" yaml:"proxy_client"`
		// DatabaseDSN is the superuser DSN of the database being provisioned
		// (not the journal). The password portion comes from the prompt.
		DatabaseDSN string `mapstructure:"database_dsn" yaml:"database_dsn"`
	} `mapstructure:"provision" yaml:"provision"`

	Language string `mapstructure:"language" yaml:"language"`
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Quartermaster")
		default: // Linux, macOS, etc.
			configDir = "/etc/quartermaster"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "quartermaster")
	}

	return filepath.Join(configDir, "quartermaster.yaml"), nil
}

// LoadConfig resolves the configuration for a command invocation. Defaults
// are applied first, then config files, environment, and finally any flags
// bound on cmd.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("quartermaster")
	v.SetConfigType("yaml")

	// An explicit config file path from the --config flag has the highest
	// precedence for file-based configuration.
	if additionalConfigFilePath != nil {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".") // Look for quartermaster.yaml in current dir

	// A missing config file is not fatal: flags, env, and defaults still
	// apply. The not-found error is returned alongside the populated config
	// so callers can decide to write a default file.
	var notFoundErr error
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
		notFoundErr = err
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("quartermaster")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, notFoundErr
}

// WriteConfigFile persists the configuration to the user (or system) config
// path, creating the directory if needed.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600 because the file may contain a DSN with credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
