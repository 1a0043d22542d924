// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidInterpreterPin is the sentinel error wrapped by InvalidInterpreterPinError.
	ErrInvalidInterpreterPin = errors.New("invalid interpreter pin")
	// ErrInvalidImageRepo is the sentinel error wrapped by InvalidImageRepoError.
	ErrInvalidImageRepo = errors.New("invalid image repository")
	// ErrInvalidEnvironmentName is the sentinel error wrapped by InvalidEnvironmentNameError.
	ErrInvalidEnvironmentName = errors.New("invalid environment name")
	// ErrInvalidCacheDirPath is returned when a CacheDirPath value is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	// pinPattern matches exact version pins like "3", "3.10", or "3.10.4".
	pinPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

	// repoPattern matches image repository names the way docker/podman accept
	// them locally: lowercase, optionally path-separated.
	repoPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._/-][a-z0-9]+)*$`)

	// envNamePattern matches names accepted for isolated environments.
	envNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type (
	// ContainerEngine specifies which container runtime to use.
	// The zero value ("") means auto-detect.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InterpreterPin is an exact interpreter version requested from the
	// package channel (e.g., "3.10"). Both build stages receive the same
	// pin value; it is injected once at pipeline dispatch.
	InterpreterPin string

	// InvalidInterpreterPinError is returned when an InterpreterPin is empty
	// or not an exact numeric version.
	InvalidInterpreterPinError struct {
		Value InterpreterPin
	}

	// ImageRepo is the repository part of a produced image tag
	// (e.g., "interlacer-base" in "interlacer-base:ab12cd34ef56").
	ImageRepo string

	// InvalidImageRepoError is returned when an ImageRepo is empty or not
	// a valid local repository name.
	InvalidImageRepoError struct {
		Value ImageRepo
	}

	// EnvironmentName is the name of the isolated environment resolved
	// inside the application image.
	EnvironmentName string

	// InvalidEnvironmentNameError is returned when an EnvironmentName is
	// empty or contains characters the package manager rejects.
	InvalidEnvironmentNameError struct {
		Value EnvironmentName
	}

	// CacheDirPath represents a filesystem path to a cache directory.
	// The zero value ("") is valid and means "use default cache directory".
	CacheDirPath string

	// InvalidCacheDirPathError is returned when a CacheDirPath value is
	// non-empty but whitespace-only.
	InvalidCacheDirPathError struct {
		Value CacheDirPath
	}

	// ImagesConfig names the image repositories produced by the two stages.
	ImagesConfig struct {
		// Base is the repository for the base environment image.
		Base ImageRepo `mapstructure:"base"`
		// App is the repository for the application layer image.
		App ImageRepo `mapstructure:"app"`
	}

	// BuildConfig holds build-cache behavior.
	BuildConfig struct {
		// ForceRebuild bypasses cached images and forces a rebuild.
		ForceRebuild bool `mapstructure:"force_rebuild"`
		// CacheDir is where build contexts are materialized.
		CacheDir CacheDirPath `mapstructure:"cache_dir"`
		// TagSuffix is appended to produced image tags (test isolation).
		TagSuffix string `mapstructure:"tag_suffix"`
	}

	// Config is the root pipeline configuration.
	Config struct {
		// BaseImage is the package-manager-enabled starting image.
		BaseImage string `mapstructure:"base_image"`
		// Channel is the package source appended to the channel list.
		Channel string `mapstructure:"channel"`
		// Python is the interpreter pin shared by both stages.
		Python InterpreterPin `mapstructure:"python"`
		// EnvName is the isolated environment created in the app layer.
		EnvName EnvironmentName `mapstructure:"env_name"`
		// Manifest is the dependency manifest consumed at env creation.
		Manifest string `mapstructure:"manifest"`
		// Workdir is the fixed working directory inside the image.
		Workdir string `mapstructure:"workdir"`
		// Assets are the source paths copied into the working tree.
		Assets []string `mapstructure:"assets"`
		// Entry is the test entry file invoked by the image's default command.
		Entry string `mapstructure:"entry"`
		// Engine selects the container runtime ("" = auto-detect).
		Engine ContainerEngine `mapstructure:"engine"`
		// Images names the produced image repositories.
		Images ImagesConfig `mapstructure:"images"`
		// Build holds cache behavior.
		Build BuildConfig `mapstructure:"build"`
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine so callers can use errors.Is for programmatic detection.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// String returns the string representation of the ContainerEngine.
func (c ContainerEngine) String() string { return string(c) }

// Validate returns an error if the ContainerEngine is not one of the defined engines.
// The zero value ("") is valid and means auto-detect.
func (c ContainerEngine) Validate() error {
	switch c {
	case ContainerEngineDocker, ContainerEnginePodman, "":
		return nil
	default:
		return &InvalidContainerEngineError{Value: c}
	}
}

// Error implements the error interface.
func (e *InvalidInterpreterPinError) Error() string {
	return fmt.Sprintf("invalid interpreter pin %q (expected an exact version like \"3.10\")", e.Value)
}

// Unwrap returns ErrInvalidInterpreterPin for errors.Is() compatibility.
func (e *InvalidInterpreterPinError) Unwrap() error { return ErrInvalidInterpreterPin }

// String returns the string representation of the InterpreterPin.
func (p InterpreterPin) String() string { return string(p) }

// Validate returns an error if the InterpreterPin is empty or not an
// exact numeric version. Range constraints (">=3.9") are rejected: the
// pipeline requires a pin that is identical across both stages.
func (p InterpreterPin) Validate() error {
	if !pinPattern.MatchString(string(p)) {
		return &InvalidInterpreterPinError{Value: p}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidImageRepoError) Error() string {
	return fmt.Sprintf("invalid image repository %q: must be a lowercase repository name", e.Value)
}

// Unwrap returns ErrInvalidImageRepo for errors.Is() compatibility.
func (e *InvalidImageRepoError) Unwrap() error { return ErrInvalidImageRepo }

// String returns the string representation of the ImageRepo.
func (r ImageRepo) String() string { return string(r) }

// Validate returns an error if the ImageRepo is not a valid local repository name.
func (r ImageRepo) Validate() error {
	if !repoPattern.MatchString(string(r)) {
		return &InvalidImageRepoError{Value: r}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidEnvironmentNameError) Error() string {
	return fmt.Sprintf("invalid environment name %q: must start with an alphanumeric and contain only [A-Za-z0-9._-]", e.Value)
}

// Unwrap returns ErrInvalidEnvironmentName for errors.Is() compatibility.
func (e *InvalidEnvironmentNameError) Unwrap() error { return ErrInvalidEnvironmentName }

// String returns the string representation of the EnvironmentName.
func (n EnvironmentName) String() string { return string(n) }

// Validate returns an error if the EnvironmentName is empty or malformed.
func (n EnvironmentName) Validate() error {
	if !envNamePattern.MatchString(string(n)) {
		return &InvalidEnvironmentNameError{Value: n}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidCacheDirPathError) Error() string {
	return fmt.Sprintf("invalid cache dir path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidCacheDirPath for errors.Is() compatibility.
func (e *InvalidCacheDirPathError) Unwrap() error { return ErrInvalidCacheDirPath }

// String returns the string representation of the CacheDirPath.
func (p CacheDirPath) String() string { return string(p) }

// Validate returns an error if the CacheDirPath is non-empty but whitespace-only.
func (p CacheDirPath) Validate() error {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return &InvalidCacheDirPathError{Value: p}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate returns an error if any typed field of the Config is invalid.
// Constraints the CUE schema cannot express (cross-field requirements)
// are also checked here.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Python.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.EnvName.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Images.Base.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Images.App.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Build.CacheDir.Validate(); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(c.BaseImage) == "" {
		errs = append(errs, errors.New("base_image must be non-empty"))
	}
	if strings.TrimSpace(c.Channel) == "" {
		errs = append(errs, errors.New("channel must be non-empty"))
	}
	if strings.TrimSpace(c.Manifest) == "" {
		errs = append(errs, errors.New("manifest must be non-empty"))
	}
	if !strings.HasPrefix(c.Workdir, "/") {
		errs = append(errs, fmt.Errorf("workdir %q must be an absolute path", c.Workdir))
	}
	if len(c.Assets) == 0 {
		errs = append(errs, errors.New("assets must list at least one source path"))
	}
	for _, a := range c.Assets {
		if strings.TrimSpace(a) == "" {
			errs = append(errs, errors.New("assets must not contain empty entries"))
		}
	}
	if strings.TrimSpace(c.Entry) == "" {
		errs = append(errs, errors.New("entry must be non-empty"))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
