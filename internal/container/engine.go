// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"io"
)

// Engine defines the interface for container operations.
type Engine interface {
	// Name returns the engine name (docker or podman)
	Name() string
	// Available checks if the engine is available on the system
	Available() bool
	// Version returns the engine version
	Version(ctx context.Context) (string, error)

	// Build builds an image from a Dockerfile
	Build(ctx context.Context, opts BuildOptions) error
	// Run runs a command in a container
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	// Remove removes a container
	Remove(ctx context.Context, containerID ContainerID, force bool) error
	// ImageExists checks if an image exists
	ImageExists(ctx context.Context, image ImageTag) (bool, error)
	// RemoveImage removes an image
	RemoveImage(ctx context.Context, image ImageTag, force bool) error
}

// BuildOptions contains options for building an image.
type BuildOptions struct {
	// ContextDir is the build context directory
	ContextDir HostFilesystemPath
	// Dockerfile is the path to the Dockerfile (relative to ContextDir)
	Dockerfile string
	// Tag is the image tag
	Tag ImageTag
	// BuildArgs are build-time variables
	BuildArgs map[string]string
	// NoCache disables the build cache
	NoCache bool
	// Stdout is where to write build output
	Stdout io.Writer
	// Stderr is where to write build errors
	Stderr io.Writer
}

// Validate returns an error if any typed field of the BuildOptions is invalid.
func (o BuildOptions) Validate() error {
	var errs []error
	if err := o.ContextDir.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.Tag.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidBuildOptionsError{FieldErrs: errs}
	}
	return nil
}

// RunOptions contains options for running a container.
type RunOptions struct {
	// Image is the image to run
	Image ImageTag
	// Command is the command to run; empty means the image's default command
	Command []string
	// WorkDir is the working directory inside the container
	WorkDir string
	// Env contains environment variables
	Env map[string]string
	// Remove automatically removes the container after exit
	Remove bool
	// Name is the container name
	Name ContainerName
	// Stdin is the standard input
	Stdin io.Reader
	// Stdout is where to write standard output
	Stdout io.Writer
	// Stderr is where to write standard error
	Stderr io.Writer
	// Interactive keeps stdin open
	Interactive bool
	// TTY allocates a pseudo-TTY
	TTY bool
}

// Validate returns an error if any typed field of the RunOptions is invalid.
func (o RunOptions) Validate() error {
	if err := o.Image.Validate(); err != nil {
		return &InvalidRunOptionsError{FieldErrs: []error{err}}
	}
	return nil
}

// RunResult contains the result of running a container.
// A non-zero exit code is normal process termination; Error is set only
// for infrastructure failures (binary not found, etc.).
type RunResult struct {
	// ContainerID is the container ID, when known
	ContainerID ContainerID
	// ExitCode is the process exit code
	ExitCode int
	// Error contains any infrastructure error
	Error error
}

// EngineType identifies the container engine type.
type EngineType string

const (
	EngineTypeDocker EngineType = "docker"
	EngineTypePodman EngineType = "podman"
)

// ErrEngineNotAvailable is returned when a container engine is not available.
type ErrEngineNotAvailable struct {
	Engine string
	Reason string
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// NewEngine creates a new container engine based on preference,
// falling back to the other engine when the preferred one is missing.
func NewEngine(preferredType EngineType) (Engine, error) {
	switch preferredType {
	case EngineTypeDocker:
		engine := NewDockerEngine()
		if engine.Available() {
			return engine, nil
		}
		podmanEngine := NewPodmanEngine()
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	case EngineTypePodman:
		engine := NewPodmanEngine()
		if engine.Available() {
			return engine, nil
		}
		dockerEngine := NewDockerEngine()
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
}

// AutoDetectEngine tries to find an available container engine.
func AutoDetectEngine() (Engine, error) {
	// Try Docker first (the common case for this pipeline)
	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}

	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
