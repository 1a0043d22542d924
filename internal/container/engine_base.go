// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/MiXaiLL76/interlacer/internal/issue"
)

var (
	// ErrInvalidImageTag is the sentinel error wrapped by InvalidImageTagError.
	ErrInvalidImageTag = errors.New("invalid image tag")

	// ErrInvalidContainerName is the sentinel error wrapped by InvalidContainerNameError.
	ErrInvalidContainerName = errors.New("invalid container name")

	// ErrInvalidHostFilesystemPath is the sentinel error wrapped by InvalidHostFilesystemPathError.
	ErrInvalidHostFilesystemPath = errors.New("invalid host filesystem path")

	// ErrInvalidBuildOptions is the sentinel error wrapped by InvalidBuildOptionsError.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is the sentinel error wrapped by InvalidRunOptionsError.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container engines.
	// Docker and Podman engines embed this struct. Methods that are identical across
	// all CLI engines (Build, Run, Remove, RemoveImage, InspectImage) are implemented
	// here; engine-specific methods (Available, Version, ImageExists) remain on the
	// concrete types.
	BaseCLIEngine struct {
		name        string // Engine name for error messages (e.g., "docker", "podman")
		binaryPath  HostFilesystemPath
		execCommand ExecCommandFunc
	}

	// ImageTag identifies a container image (repository plus optional tag).
	// A valid tag must be non-empty and contain no whitespace.
	ImageTag string

	// InvalidImageTagError is returned when an ImageTag is empty or contains whitespace.
	InvalidImageTagError struct {
		Value ImageTag
	}

	// ContainerID identifies a container instance.
	ContainerID string

	// ContainerName is the optional name given to a container at run time.
	// The zero value ("") is valid and means "engine-assigned name".
	ContainerName string

	// InvalidContainerNameError is returned when a ContainerName is non-empty
	// but whitespace-only.
	InvalidContainerNameError struct {
		Value ContainerName
	}

	// HostFilesystemPath represents a filesystem path on the host.
	// A valid path must be non-empty and not whitespace-only.
	HostFilesystemPath string

	// InvalidHostFilesystemPathError is returned when a HostFilesystemPath is empty or whitespace-only.
	InvalidHostFilesystemPathError struct {
		Value HostFilesystemPath
	}

	// InvalidBuildOptionsError is returned when a BuildOptions has one or more invalid fields.
	InvalidBuildOptionsError struct {
		FieldErrs []error
	}

	// InvalidRunOptionsError is returned when a RunOptions has one or more invalid fields.
	InvalidRunOptionsError struct {
		FieldErrs []error
	}
)

// Error implements the error interface.
func (e *InvalidImageTagError) Error() string {
	return fmt.Sprintf("invalid image tag %q: must be non-empty without whitespace", e.Value)
}

// Unwrap returns ErrInvalidImageTag so callers can use errors.Is for programmatic detection.
func (e *InvalidImageTagError) Unwrap() error { return ErrInvalidImageTag }

// String returns the string representation of the ImageTag.
func (t ImageTag) String() string { return string(t) }

// Validate returns an error if the ImageTag is empty or contains whitespace.
func (t ImageTag) Validate() error {
	if strings.TrimSpace(string(t)) == "" || strings.ContainsAny(string(t), " \t\n") {
		return &InvalidImageTagError{Value: t}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidContainerNameError) Error() string {
	return fmt.Sprintf("invalid container name %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidContainerName for errors.Is() compatibility.
func (e *InvalidContainerNameError) Unwrap() error { return ErrInvalidContainerName }

// String returns the string representation of the ContainerName.
func (n ContainerName) String() string { return string(n) }

// Validate returns an error if the ContainerName is non-empty but whitespace-only.
// The zero value ("") is valid and means the engine assigns a name.
func (n ContainerName) Validate() error {
	if n != "" && strings.TrimSpace(string(n)) == "" {
		return &InvalidContainerNameError{Value: n}
	}
	return nil
}

// String returns the string representation of the HostFilesystemPath.
func (p HostFilesystemPath) String() string { return string(p) }

// Validate returns an error if the HostFilesystemPath is invalid.
// A valid path must be non-empty and not whitespace-only.
func (p HostFilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidHostFilesystemPathError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidHostFilesystemPathError.
func (e *InvalidHostFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid host filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidHostFilesystemPath for errors.Is() compatibility.
func (e *InvalidHostFilesystemPathError) Unwrap() error { return ErrInvalidHostFilesystemPath }

// Error implements the error interface for InvalidBuildOptionsError.
func (e *InvalidBuildOptionsError) Error() string {
	return fmt.Sprintf("invalid build options: %d field error(s)", len(e.FieldErrs))
}

// Unwrap returns ErrInvalidBuildOptions plus the individual field errors
// so errors.Is can match both the aggregate sentinel and any field sentinel.
func (e *InvalidBuildOptionsError) Unwrap() []error {
	return append([]error{ErrInvalidBuildOptions}, e.FieldErrs...)
}

// Error implements the error interface for InvalidRunOptionsError.
func (e *InvalidRunOptionsError) Error() string {
	return fmt.Sprintf("invalid run options: %d field error(s)", len(e.FieldErrs))
}

// Unwrap returns ErrInvalidRunOptions plus the individual field errors
// so errors.Is can match both the aggregate sentinel and any field sentinel.
func (e *InvalidRunOptionsError) Unwrap() []error {
	return append([]error{ErrInvalidRunOptions}, e.FieldErrs...)
}

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath HostFilesystemPath, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Accessor Methods ---

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return string(e.binaryPath)
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a container build command.
// Returns arguments in the order expected by docker/podman build.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		// Resolve Dockerfile path relative to context directory.
		// If ContextDir is empty, the Dockerfile path is used as-is
		// (assumed resolvable from CWD by the container engine).
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(string(opts.ContextDir), dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", string(opts.Tag))
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	for k, v := range opts.BuildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args, string(opts.ContextDir))

	return args
}

// RunArgs constructs arguments for a container run command.
// Returns arguments in the order expected by docker/podman run.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", string(opts.Name))
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args, string(opts.Image))
	args = append(args, opts.Command...)

	return args
}

// RemoveArgs constructs arguments for a container remove command.
func (e *BaseCLIEngine) RemoveArgs(containerID ContainerID, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, string(containerID))
	return args
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(image ImageTag, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, string(image))
	return args
}

// --- Command Execution ---

// RunCommand executes a command and returns its output.
// This is the low-level execution method used by concrete engines.
func (e *BaseCLIEngine) RunCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("command %s %v failed: %w", string(e.binaryPath), args, err)
	}
	return out, nil
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", string(e.binaryPath), args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", string(e.binaryPath), args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, string(e.binaryPath), args...)
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Build builds an image from a Dockerfile.
// It validates BuildOptions before executing to catch invalid fields early.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	args := e.BuildArgs(opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}

	return nil
}

// Run runs a command in a container and returns the result.
// A non-zero exit code is captured in RunResult.ExitCode (not returned as error).
// Only infrastructure failures (binary not found, etc.) set RunResult.Error.
// It validates RunOptions before executing to catch invalid fields early.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	args := e.RunArgs(opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{}
	if err != nil {
		if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Error = runContainerError(e.name, opts, err)
		}
	}

	return result, nil
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, containerID ContainerID, force bool) error {
	args := e.RemoveArgs(containerID, force)
	return e.RunCommandStatus(ctx, args...)
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image ImageTag, force bool) error {
	args := e.RemoveImageArgs(image, force)
	return e.RunCommandStatus(ctx, args...)
}

// InspectImage returns information about an image.
func (e *BaseCLIEngine) InspectImage(ctx context.Context, image ImageTag) (string, error) {
	return e.RunCommandWithOutput(ctx, "image", "inspect", string(image))
}

// --- Actionable Error Helpers ---

// buildContainerError creates an actionable error for container build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image")

	switch {
	case opts.Tag != "":
		ctx.WithResource(string(opts.Tag))
	case opts.ContextDir != "":
		ctx.WithResource(string(opts.ContextDir) + "/Dockerfile")
	}

	ctx.WithSuggestion("Check the build output above for the failing instruction")
	ctx.WithSuggestion("Verify the build context path exists and is accessible")
	ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull <base-image>)")

	return ctx.Wrap(cause).BuildError()
}

// runContainerError creates an actionable error for container run failures.
func runContainerError(engine string, opts RunOptions, cause error) error {
	return issue.NewErrorContext().
		WithOperation("run container").
		WithResource(string(opts.Image)).
		WithSuggestion("Verify the image exists (try: " + engine + " images)").
		WithSuggestion("Check that the engine daemon is running").
		Wrap(cause).
		BuildError()
}
