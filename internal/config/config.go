// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/MiXaiLL76/interlacer/internal/cueutil"
	"github.com/MiXaiLL76/interlacer/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "interlacer"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "interlacer"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// DefaultConfig returns a Config with the built-in pipeline defaults.
// These mirror the provisioning inputs of the interlacer project: a conda
// base image, the conda-forge channel, and a pinned Python 3.10.
func DefaultConfig() *Config {
	return &Config{
		BaseImage: "continuumio/miniconda3:latest",
		Channel:   "conda-forge",
		Python:    "3.10",
		EnvName:   "interlacer",
		Manifest:  "requirements.txt",
		Workdir:   "/app",
		Assets:    []string{"scripts", "interlacer", "tests/test_utils.py"},
		Entry:     "tests/test_utils.py",
		Engine:    "",
		Images: ImagesConfig{
			Base: "interlacer-base",
			App:  "interlacer-app",
		},
		Build: BuildConfig{
			ForceRebuild: false,
			CacheDir:     "",
			TagSuffix:    "",
		},
	}
}

// ConfigDir returns the interlacer configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
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
	default: // Linux and others
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
// package-level state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("base_image", defaults.BaseImage)
	v.SetDefault("channel", defaults.Channel)
	v.SetDefault("python", string(defaults.Python))
	v.SetDefault("env_name", string(defaults.EnvName))
	v.SetDefault("manifest", defaults.Manifest)
	v.SetDefault("workdir", defaults.Workdir)
	v.SetDefault("assets", defaults.Assets)
	v.SetDefault("entry", defaults.Entry)
	v.SetDefault("engine", string(defaults.Engine))
	v.SetDefault("images.base", string(defaults.Images.Base))
	v.SetDefault("images.app", string(defaults.Images.App))
	v.SetDefault("build.force_rebuild", defaults.Build.ForceRebuild)
	v.SetDefault("build.cache_dir", string(defaults.Build.CacheDir))
	v.SetDefault("build.tag_suffix", defaults.Build.TagSuffix)

	resolvedPath := ""

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'interlacer config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", wrapParseError(err, opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		// Project-local config takes precedence over the per-user one:
		// the pipeline is a property of the project being built.
		localPath := ConfigFileName + "." + ConfigFileExt
		if opts.ProjectDir != "" {
			localPath = filepath.Join(opts.ProjectDir, localPath)
		}
		if fileExists(localPath) {
			if err := loadCUEIntoViper(v, localPath); err != nil {
				return nil, "", wrapParseError(err, localPath)
			}
			resolvedPath = localPath
		} else {
			cfgDir, err := ConfigDir()
			if err != nil {
				return nil, "", err
			}
			userPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
			if fileExists(userPath) {
				if err := loadCUEIntoViper(v, userPath); err != nil {
					return nil, "", wrapParseError(err, userPath)
				}
				resolvedPath = userPath
			}
			// If no config file found, use defaults (no error)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate constraints that CUE cannot express (typed fields,
	// cross-field requirements).
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'interlacer config show' to compare against the defaults").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// ErrParse marks a configuration file that failed CUE parsing or schema
// validation, so callers can distinguish bad config from other failures.
var ErrParse = errors.New("invalid configuration")

// wrapParseError decorates a CUE parse/validation failure with
// user-facing suggestions.
func wrapParseError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'interlacer config --help' for configuration options").
		Wrap(fmt.Errorf("%w: %w", ErrParse, err)).
		BuildError()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema, and merges its contents into Viper. The config decodes to a
// map for Viper integration; every field is optional, so validation
// does not require concrete values.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	parsed, err := cueutil.ParseAndDecodeString[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path), cueutil.WithConcrete(false))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*parsed.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
