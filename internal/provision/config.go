// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"os"
	"path/filepath"

	"github.com/MiXaiLL76/interlacer/internal/config"
)

// TagSuffixEnvVar lets the environment append a suffix to built image tags.
// This enables test isolation by making each test run's images unique.
const TagSuffixEnvVar = "INTERLACER_TAG_SUFFIX"

type (
	// Config holds configuration for building the stage images.
	Config struct {
		// ProjectDir is the build context root containing the assets and
		// the dependency manifest. Default: current working directory.
		ProjectDir string

		// ForceRebuild bypasses cached images and forces a rebuild
		ForceRebuild bool

		// BaseRepo is the image repository for the base stage.
		// Default: interlacer-base
		BaseRepo config.ImageRepo

		// AppRepo is the image repository for the app stage.
		// Default: interlacer-app
		AppRepo config.ImageRepo

		// CacheDir is where build metadata (the lockfile) is written.
		// Default: ~/.cache/interlacer/provision
		CacheDir string

		// TagSuffix is an optional suffix appended to built image tags.
		// When empty (default), the standard tag format is used.
		// Can be set via the INTERLACER_TAG_SUFFIX environment variable.
		TagSuffix string

		// BuildAttempts is how many times a stage build is attempted when
		// failures look transient (registry or channel network errors).
		BuildAttempts int
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	projectDir, _ := os.Getwd()

	cacheDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".cache", "interlacer", "provision")
	}

	return &Config{
		ProjectDir:    projectDir,
		ForceRebuild:  false,
		BaseRepo:      "interlacer-base",
		AppRepo:       "interlacer-app",
		CacheDir:      cacheDir,
		TagSuffix:     os.Getenv(TagSuffixEnvVar),
		BuildAttempts: 3,
	}
}

// WithProjectDir returns an Option that sets ProjectDir on the config.
func WithProjectDir(dir string) Option {
	return func(c *Config) {
		c.ProjectDir = dir
	}
}

// WithForceRebuild returns an Option that sets ForceRebuild on the config.
func WithForceRebuild(force bool) Option {
	return func(c *Config) {
		c.ForceRebuild = force
	}
}

// WithBaseRepo returns an Option that sets BaseRepo on the config.
func WithBaseRepo(repo config.ImageRepo) Option {
	return func(c *Config) {
		c.BaseRepo = repo
	}
}

// WithAppRepo returns an Option that sets AppRepo on the config.
func WithAppRepo(repo config.ImageRepo) Option {
	return func(c *Config) {
		c.AppRepo = repo
	}
}

// WithCacheDir returns an Option that sets CacheDir on the config.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithTagSuffix returns an Option that sets TagSuffix on the config.
// This is primarily used for test isolation so parallel tests don't
// compete for the same image tags.
func WithTagSuffix(suffix string) Option {
	return func(c *Config) {
		c.TagSuffix = suffix
	}
}

// WithBuildAttempts returns an Option that sets BuildAttempts on the config.
func WithBuildAttempts(attempts int) Option {
	return func(c *Config) {
		c.BuildAttempts = attempts
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
