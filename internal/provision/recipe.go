// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/MiXaiLL76/interlacer/internal/config"
	"github.com/MiXaiLL76/interlacer/internal/container"
)

// CondaEnvRoot is where conda materializes named environments inside the
// miniconda base images.
const CondaEnvRoot = "/opt/conda/envs"

var (
	// ErrInvalidRecipe is the sentinel error wrapped by InvalidRecipeError.
	ErrInvalidRecipe = errors.New("invalid recipe")

	// ErrWorkdirNotSet is recorded when a relative-path operation runs
	// before the working directory has been fixed.
	ErrWorkdirNotSet = errors.New("working directory must be set before relative-path operations")

	// ErrSearchPathNotPrepended is recorded when activation is requested
	// before the environment's bin directory has been put on PATH.
	ErrSearchPathNotPrepended = errors.New("search path must be prepended before activation")

	// ErrNoEntryCommand is recorded when an app recipe is rendered without
	// a declared entry command.
	ErrNoEntryCommand = errors.New("no entry command declared")
)

type (
	// InvalidRecipeError aggregates every defect recorded while composing
	// a recipe. Recording is deferred so callers can chain operations and
	// check a single error at render time.
	InvalidRecipeError struct {
		Recipe string
		Errs   []error
	}

	// BaseRecipe describes the base stage: a conda-enabled image brought
	// up to date with a pinned interpreter installed from a named channel.
	BaseRecipe struct {
		baseImage container.ImageTag
		channels  []string
		steps     []string // rendered RUN payloads, in call order
		errs      []error
	}

	// AppRecipe describes the app stage: application assets plus a named
	// environment layered on top of a built base image.
	AppRecipe struct {
		baseImage    container.ImageTag
		workdir      string
		assets       []string
		envName      config.EnvironmentName
		manifest     string
		steps        []appStep
		entryCommand []string // last declaration wins
		searchPaths  []string
		errs         []error
	}

	appStep struct {
		// kind is the Dockerfile instruction (RUN, COPY, ENV, ...)
		kind    string
		payload string
	}
)

// Error implements the error interface.
func (e *InvalidRecipeError) Error() string {
	return fmt.Sprintf("invalid %s recipe: %d error(s): %v", e.Recipe, len(e.Errs), errors.Join(e.Errs...))
}

// Unwrap returns the sentinel plus each recorded defect.
func (e *InvalidRecipeError) Unwrap() []error {
	return append([]error{ErrInvalidRecipe}, e.Errs...)
}

// shellQuote quotes s for safe interpolation into a RUN payload.
func shellQuote(s string) (string, error) {
	quoted, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q for shell: %w", s, err)
	}
	return quoted, nil
}

// validateCopyPath rejects paths that cannot be emitted as a bare COPY
// operand. Whitespace would split the instruction's source and destination
// fields, producing a Dockerfile that fails only at engine time.
func validateCopyPath(path, what string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%s must be non-empty", what)
	}
	if strings.ContainsAny(path, " \t\r\n") {
		return fmt.Errorf("%s %q must not contain whitespace", what, path)
	}
	return nil
}

// validateShell checks that a RUN payload is parseable shell. Recipes only
// emit payloads they composed themselves, so a parse failure means a recipe
// bug (typically an unquoted user-supplied value), not bad user input.
func validateShell(payload string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(strings.NewReader(payload), ""); err != nil {
		return fmt.Errorf("RUN payload %q is not valid shell: %w", payload, err)
	}
	return nil
}

// --- BaseRecipe ---

// NewBaseRecipe starts a base stage recipe from the given image.
func NewBaseRecipe(baseImage container.ImageTag) *BaseRecipe {
	r := &BaseRecipe{baseImage: baseImage}
	if err := baseImage.Validate(); err != nil {
		r.errs = append(r.errs, err)
	}
	return r
}

// AddChannel appends a package channel to the resolver's channel list.
// Channel order affects resolution priority, so appends preserve call order.
// Adding a channel that is already present is a no-op.
func (r *BaseRecipe) AddChannel(name string) *BaseRecipe {
	if strings.TrimSpace(name) == "" {
		r.errs = append(r.errs, errors.New("channel name must be non-empty"))
		return r
	}
	if slices.Contains(r.channels, name) {
		return r
	}
	r.channels = append(r.channels, name)

	quoted, err := shellQuote(name)
	if err != nil {
		r.errs = append(r.errs, err)
		return r
	}
	r.steps = append(r.steps, "conda config --add channels "+quoted)
	return r
}

// SelfUpdate upgrades the package manager itself to the newest version
// available on the configured channels.
func (r *BaseRecipe) SelfUpdate() *BaseRecipe {
	r.steps = append(r.steps, "conda update -n base conda -y")
	return r
}

// UpdateAll upgrades every installed package to the newest mutually
// compatible version.
func (r *BaseRecipe) UpdateAll() *BaseRecipe {
	r.steps = append(r.steps, "conda update --all -y")
	return r
}

// InstallPinned installs a package at an exact version from a specific
// channel. The pipeline uses it to pin the interpreter.
func (r *BaseRecipe) InstallPinned(name string, version config.InterpreterPin, channel string) *BaseRecipe {
	if strings.TrimSpace(name) == "" {
		r.errs = append(r.errs, errors.New("package name must be non-empty"))
		return r
	}
	if err := version.Validate(); err != nil {
		r.errs = append(r.errs, err)
		return r
	}

	spec, err := shellQuote(fmt.Sprintf("%s=%s", name, version))
	if err != nil {
		r.errs = append(r.errs, err)
		return r
	}
	step := "conda install " + spec + " -y"
	if channel != "" {
		quotedChannel, err := shellQuote(channel)
		if err != nil {
			r.errs = append(r.errs, err)
			return r
		}
		step = "conda install " + spec + " -c " + quotedChannel + " -y"
	}
	r.steps = append(r.steps, step)
	return r
}

// Render emits the Dockerfile for the base stage, or an
// InvalidRecipeError describing every defect recorded while composing it.
func (r *BaseRecipe) Render() (string, error) {
	errs := slices.Clone(r.errs)
	for _, step := range r.steps {
		if err := validateShell(step); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", &InvalidRecipeError{Recipe: "base", Errs: errs}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n\n", r.baseImage)
	for _, step := range r.steps {
		fmt.Fprintf(&sb, "RUN %s\n", step)
	}
	return sb.String(), nil
}

// --- AppRecipe ---

// NewAppRecipe starts an app stage recipe on top of a built base image.
func NewAppRecipe(baseImage container.ImageTag) *AppRecipe {
	r := &AppRecipe{baseImage: baseImage}
	if err := baseImage.Validate(); err != nil {
		r.errs = append(r.errs, err)
	}
	return r
}

// SetWorkingDirectory fixes the working directory for all subsequent
// operations and for the entry command. It must be called before any
// operation that uses a relative path.
func (r *AppRecipe) SetWorkingDirectory(path string) *AppRecipe {
	if !strings.HasPrefix(path, "/") {
		r.errs = append(r.errs, fmt.Errorf("working directory %q must be absolute", path))
		return r
	}
	r.workdir = path
	r.steps = append(r.steps, appStep{kind: "WORKDIR", payload: path})
	return r
}

// CopyAssets copies each source path from the build context into the same
// relative location under the working directory. Overlapping destinations
// resolve last-write-wins, though each asset here maps to a distinct subpath.
func (r *AppRecipe) CopyAssets(sources ...string) *AppRecipe {
	if r.workdir == "" {
		r.errs = append(r.errs, ErrWorkdirNotSet)
		return r
	}
	for _, src := range sources {
		if err := validateCopyPath(src, "asset path"); err != nil {
			r.errs = append(r.errs, err)
			continue
		}
		r.assets = append(r.assets, src)
		r.steps = append(r.steps, appStep{kind: "COPY", payload: src + " " + src})
	}
	return r
}

// CreateNamedEnvironment resolves the dependency manifest plus the pinned
// interpreter into a single isolated conda environment. The interpreter pin
// must be the same value the base stage installed; callers inject one shared
// pin into both recipes so the two stages cannot diverge.
func (r *AppRecipe) CreateNamedEnvironment(name config.EnvironmentName, manifestPath string, pin config.InterpreterPin) *AppRecipe {
	if r.workdir == "" {
		r.errs = append(r.errs, ErrWorkdirNotSet)
		return r
	}
	if err := name.Validate(); err != nil {
		r.errs = append(r.errs, err)
		return r
	}
	if err := pin.Validate(); err != nil {
		r.errs = append(r.errs, err)
		return r
	}
	if err := validateCopyPath(manifestPath, "manifest path"); err != nil {
		r.errs = append(r.errs, err)
		return r
	}

	r.envName = name
	r.manifest = manifestPath
	r.assets = append(r.assets, manifestPath)
	r.steps = append(r.steps, appStep{kind: "COPY", payload: manifestPath + " " + manifestPath})

	quotedName, nameErr := shellQuote(name.String())
	quotedManifest, manifestErr := shellQuote(manifestPath)
	quotedPython, pinErr := shellQuote("python=" + pin.String())
	if err := errors.Join(nameErr, manifestErr, pinErr); err != nil {
		r.errs = append(r.errs, err)
		return r
	}

	r.steps = append(r.steps, appStep{
		kind:    "RUN",
		payload: fmt.Sprintf("conda create -n %s --file %s %s -y", quotedName, quotedManifest, quotedPython),
	})
	return r
}

// EnvironmentBinDir returns the named environment's executable directory
// inside the image, or "" when no environment has been created yet.
func (r *AppRecipe) EnvironmentBinDir() string {
	if r.envName == "" {
		return ""
	}
	return CondaEnvRoot + "/" + r.envName.String() + "/bin"
}

// PrependSearchPath puts entry at the front of the image's PATH so that
// executable lookup resolves to the named environment before any system
// default. It must be called before Activate.
func (r *AppRecipe) PrependSearchPath(entry string) *AppRecipe {
	if !strings.HasPrefix(entry, "/") {
		r.errs = append(r.errs, fmt.Errorf("search path entry %q must be absolute", entry))
		return r
	}
	r.searchPaths = append(r.searchPaths, entry)
	r.steps = append(r.steps, appStep{kind: "ENV", payload: fmt.Sprintf("PATH=%s:$PATH", entry)})
	return r
}

// Activate marks the named environment active for login shells inside the
// image. The final image's entry command does not depend on it: activation
// written during a build step does not persist into the runtime process, so
// the entry command qualifies the interpreter path explicitly and PATH is
// set via PrependSearchPath. Kept for interactive use of the image.
func (r *AppRecipe) Activate(name config.EnvironmentName) *AppRecipe {
	if len(r.searchPaths) == 0 {
		r.errs = append(r.errs, ErrSearchPathNotPrepended)
		return r
	}
	if err := name.Validate(); err != nil {
		r.errs = append(r.errs, err)
		return r
	}

	quoted, err := shellQuote("source activate " + name.String())
	if err != nil {
		r.errs = append(r.errs, err)
		return r
	}
	r.steps = append(r.steps, appStep{
		kind:    "RUN",
		payload: "echo " + quoted + " > ~/.bashrc",
	})
	return r
}

// DeclareEntryCommand fixes the image's default command. Declaring it again
// replaces the earlier declaration; exactly one entry command ends up in the
// rendered Dockerfile.
func (r *AppRecipe) DeclareEntryCommand(cmd ...string) *AppRecipe {
	if len(cmd) == 0 {
		r.errs = append(r.errs, errors.New("entry command must be non-empty"))
		return r
	}
	r.entryCommand = slices.Clone(cmd)
	return r
}

// InterpreterEntryCommand builds the fully qualified invocation of the named
// environment's interpreter against the given entry file. Qualifying the
// interpreter path removes any reliance on build-time activation state.
func (r *AppRecipe) InterpreterEntryCommand(entryFile string) []string {
	return []string{r.EnvironmentBinDir() + "/python", entryFile}
}

// Assets returns every build-context path the recipe copies into the image,
// in copy order. The builder verifies these exist before any build runs.
func (r *AppRecipe) Assets() []string {
	return slices.Clone(r.assets)
}

// EnvironmentName returns the name of the environment the recipe creates.
func (r *AppRecipe) EnvironmentName() config.EnvironmentName {
	return r.envName
}

// Render emits the Dockerfile for the app stage, or an InvalidRecipeError
// describing every defect recorded while composing it.
func (r *AppRecipe) Render() (string, error) {
	errs := slices.Clone(r.errs)
	if len(r.entryCommand) == 0 {
		errs = append(errs, ErrNoEntryCommand)
	}
	for _, step := range r.steps {
		if step.kind == "RUN" {
			if err := validateShell(step.payload); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return "", &InvalidRecipeError{Recipe: "app", Errs: errs}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n\n", r.baseImage)
	for _, step := range r.steps {
		fmt.Fprintf(&sb, "%s %s\n", step.kind, step.payload)
	}

	// Exec-form CMD so the entry command runs without a shell in between.
	cmdJSON, err := json.Marshal(r.entryCommand)
	if err != nil {
		return "", &InvalidRecipeError{Recipe: "app", Errs: []error{err}}
	}
	fmt.Fprintf(&sb, "\nCMD %s\n", cmdJSON)

	return sb.String(), nil
}
