// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrStepFailed is the sentinel error wrapped by StepError.
	ErrStepFailed = errors.New("pipeline step failed")

	// ErrEmptyStage is returned when a stage is run with no steps.
	ErrEmptyStage = errors.New("pipeline stage has no steps")
)

type (
	// StepFunc is the body of a pipeline step.
	StepFunc func(ctx context.Context) error

	// Step is a named unit of work within a stage.
	Step struct {
		// Name identifies the step in logs and errors
		Name string
		// Run executes the step
		Run StepFunc
	}

	// Stage is an ordered sequence of steps run under one name.
	Stage struct {
		// Name identifies the stage (e.g., "base", "app")
		Name string
		// Steps run in order; the first failure halts the stage
		Steps []Step
	}

	// StepError reports which step of which stage failed.
	// Steps after the failing one never ran.
	StepError struct {
		Stage string
		Step  string
		Index int
		Cause error
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)

	// Runner executes stages, logging each step as it starts and finishes.
	Runner struct {
		logger *log.Logger
	}
)

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("stage %q step %q (#%d) failed: %v", e.Stage, e.Step, e.Index+1, e.Cause)
}

// Unwrap returns the step's underlying error plus the sentinel so callers can
// match either with errors.Is.
func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Cause}
}

// WithLogger sets the logger used for step progress.
func WithLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner. Without options it logs through the
// charmbracelet default logger.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStage executes the stage's steps in order. It stops at the first step
// that returns an error and wraps it in a StepError; steps after the failed
// one are not attempted and no step is retried.
func (r *Runner) RunStage(ctx context.Context, stage Stage) error {
	if len(stage.Steps) == 0 {
		return fmt.Errorf("stage %q: %w", stage.Name, ErrEmptyStage)
	}

	r.logger.Info("stage starting", "stage", stage.Name, "steps", len(stage.Steps))
	stageStart := time.Now()

	for i, step := range stage.Steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Stage: stage.Name, Step: step.Name, Index: i, Cause: err}
		}

		r.logger.Info("step starting", "stage", stage.Name, "step", step.Name)
		start := time.Now()

		if err := step.Run(ctx); err != nil {
			r.logger.Error("step failed",
				"stage", stage.Name,
				"step", step.Name,
				"elapsed", time.Since(start).Round(time.Millisecond),
				"err", err)
			return &StepError{Stage: stage.Name, Step: step.Name, Index: i, Cause: err}
		}

		r.logger.Debug("step done",
			"stage", stage.Name,
			"step", step.Name,
			"elapsed", time.Since(start).Round(time.Millisecond))
	}

	r.logger.Info("stage done",
		"stage", stage.Name,
		"elapsed", time.Since(stageStart).Round(time.Millisecond))
	return nil
}

// RunStages executes stages in order, halting at the first stage that fails.
func (r *Runner) RunStages(ctx context.Context, stages ...Stage) error {
	for _, stage := range stages {
		if err := r.RunStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}
