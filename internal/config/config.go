// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/LexLattice/true-modules/internal/issue"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "tm"
	// ConfigFileName is the config file name.
	ConfigFileName = "config.toml"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "TM"
)

type (
	// Config is the tool configuration. Every field has a flag counterpart;
	// flags override environment variables, which override the file.
	Config struct {
		// ModulesRoot is the default module catalog root.
		ModulesRoot string `mapstructure:"modules_root" toml:"modules_root"`
		// GlueRoot is the default glue catalog root; empty means ModulesRoot.
		GlueRoot string `mapstructure:"glue_root" toml:"glue_root"`
		// OutDir is the default workspace output directory.
		OutDir string `mapstructure:"out_dir" toml:"out_dir"`
		// UI holds presentation settings.
		UI UIConfig `mapstructure:"ui" toml:"ui"`
	}

	// UIConfig holds presentation settings.
	UIConfig struct {
		// Verbose enables debug-level logging.
		Verbose bool `mapstructure:"verbose" toml:"verbose"`
		// Explain renders a remediation page alongside error lines.
		Explain bool `mapstructure:"explain" toml:"explain"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ModulesRoot: "modules",
		OutDir:      "out",
	}
}

// ConfigDir returns the tm configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application
// Support, and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It never fails on a missing file; defaults apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("modules_root", defaults.ModulesRoot)
	v.SetDefault("glue_root", defaults.GlueRoot)
	v.SetDefault("out_dir", defaults.OutDir)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.explain", defaults.UI.Explain)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'tm config init' to create a default file").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := readFileInto(v, opts.ConfigFilePath); err != nil {
			return nil, "", err
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		path := filepath.Join(cfgDir, ConfigFileName)
		if fileExists(path) {
			if err := readFileInto(v, path); err != nil {
				return nil, "", err
			}
			resolvedPath = path
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

func readFileInto(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check that the file contains valid TOML syntax").
			WithSuggestion("Compare against 'tm config show' for the expected keys").
			Wrap(err).
			BuildError()
	}
	return nil
}

// WriteDefault writes the built-in defaults as a TOML config file, creating
// parent directories as needed. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if fileExists(path) {
		return issue.New(issue.CodeInput, "config file already exists: %s", path)
	}
	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return issue.Wrap(issue.CodeIO, err, "encode default config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return issue.Wrap(issue.CodeIO, err, "create config directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return issue.Wrap(issue.CodeIO, err, "write config file %s", path)
	}
	return nil
}

// Render returns the configuration as TOML text, for `tm config show`.
func (c *Config) Render() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", issue.Wrap(issue.CodeIO, err, "encode config")
	}
	return string(data), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
