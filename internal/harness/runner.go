// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/MiXaiLL76/interlacer/internal/container"
	"github.com/MiXaiLL76/interlacer/internal/issue"
)

// maxRunRetries is how many times a run is re-attempted when the engine
// reports a transient exit code.
const maxRunRetries = 3

type (
	// Result is the outcome of one harness dispatch.
	Result struct {
		// ExitCode is the test process's exit status, propagated untouched
		ExitCode ExitCode
		// Error is set only for infrastructure failures, never for test failures
		Error error
	}

	// Options configures a harness run.
	Options struct {
		// Command overrides the image's default entry command when non-empty
		Command []string
		// WorkDir overrides the image's working directory when non-empty
		WorkDir string
		// Env holds additional environment variables for the test process
		Env map[string]string
		// Stdin, Stdout, Stderr wire the test process's stdio.
		// Nil values default to the harness process's own streams.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)

	// Runner executes the app image's entry command in a container.
	Runner struct {
		engine container.Engine
		logger *log.Logger

		// newContainerName generates unique container names; replaceable in tests
		newContainerName func() container.ContainerName
	}
)

// NewErrorResult creates a Result for an infrastructure failure.
func NewErrorResult(code ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewExitCodeResult creates a Result for normal process termination.
func NewExitCodeResult(code ExitCode) *Result {
	return &Result{ExitCode: code}
}

// WithLogger sets the logger the runner reports progress through.
func WithLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithContainerNamer replaces the container name generator, mainly so tests
// can assert on deterministic names.
func WithContainerNamer(fn func() container.ContainerName) RunnerOption {
	return func(r *Runner) {
		r.newContainerName = fn
	}
}

// NewRunner creates a Runner on the given engine.
func NewRunner(engine container.Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine: engine,
		logger: log.Default(),
		newContainerName: func() container.ContainerName {
			return container.ContainerName("interlacer-test-" + uuid.NewString()[:8])
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the image's entry command (or opts.Command when set) and
// returns the test process's exit code. Transient engine exit codes are
// retried up to maxRunRetries times; a failing test is returned as-is on
// the first attempt.
func (r *Runner) Run(ctx context.Context, image container.ImageTag, opts Options) *Result {
	if err := image.Validate(); err != nil {
		return NewErrorResult(1, err)
	}

	stdout := opts.Stdout
	stderr := opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var last *Result
	for attempt := range maxRunRetries {
		if err := ctx.Err(); err != nil {
			return NewErrorResult(1, err)
		}

		name := r.newContainerName()
		r.logger.Debug("dispatching test run", "image", image, "container", name, "attempt", attempt+1)

		runResult, err := r.engine.Run(ctx, container.RunOptions{
			Image:   image,
			Command: opts.Command,
			WorkDir: opts.WorkDir,
			Env:     opts.Env,
			Remove:  true,
			Name:    name,
			Stdin:   opts.Stdin,
			Stdout:  stdout,
			Stderr:  stderr,
		})
		if err != nil {
			return NewErrorResult(1, runHarnessError(image, err))
		}
		if runResult.Error != nil {
			return NewErrorResult(ExitCode(runResult.ExitCode), runHarnessError(image, runResult.Error))
		}

		code := ExitCode(runResult.ExitCode)
		last = NewExitCodeResult(code)
		if !code.IsTransient() {
			return last
		}
		r.logger.Warn("transient engine failure, retrying",
			"image", image, "exitCode", code, "attempt", attempt+1, "maxRetries", maxRunRetries)
	}
	return last
}

// runHarnessError creates an actionable error for harness dispatch failures.
func runHarnessError(image container.ImageTag, cause error) error {
	return issue.NewErrorContext().
		WithOperation("run test harness").
		WithResource(image.String()).
		WithSuggestion(fmt.Sprintf("Verify the image exists: interlacer build (expected %s)", image)).
		WithSuggestion("Check that the container engine daemon is running").
		Wrap(cause).
		BuildError()
}
