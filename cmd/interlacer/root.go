// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MiXaiLL76/interlacer/internal/config"
	"github.com/MiXaiLL76/interlacer/internal/container"
	"github.com/MiXaiLL76/interlacer/internal/issue"
	"github.com/MiXaiLL76/interlacer/internal/pipeline"
	"github.com/MiXaiLL76/interlacer/internal/provision"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// engineFlag selects the container engine, overriding the config
	engineFlag string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "interlacer",
		Short: "Reproducible conda environment builds for interlacer",
		Long: TitleStyle.Render("interlacer") + SubtitleStyle.Render(" - reproducible environment builds and test dispatch") + `

interlacer builds a two-stage container environment: a conda base image
with a pinned interpreter, and an application image layering the source
assets plus a named environment resolved from requirements.txt. The app
image's default command runs the test entry file and propagates its
exit code.

Configuration lives in an 'interlacer.cue' file in the project directory
(see: interlacer config init).

` + SubtitleStyle.Render("Examples:") + `
  interlacer build          Build both stage images
  interlacer build --stage base   Build only the base environment
  interlacer test           Build (cached) and run the test harness
  interlacer plan           Show what a build would produce
  interlacer config show    Show the effective configuration`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./interlacer.cue)")
	rootCmd.PersistentFlags().StringVar(&engineFlag, "engine", "", "container engine: docker or podman (default: from config, else auto-detect)")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// loadConfig loads the pipeline configuration, honoring the --config flag.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectEngine resolves the container engine from the --engine flag, then
// the config, then auto-detection.
func selectEngine(cfg *config.Config) (container.Engine, error) {
	selected := config.ContainerEngine(engineFlag)
	if selected == "" {
		selected = cfg.Engine
	}
	if err := selected.Validate(); err != nil {
		return nil, err
	}
	if selected == "" {
		return container.AutoDetectEngine()
	}
	return container.NewEngine(container.EngineType(selected))
}

// setupLogging configures the default logger per the verbose flag.
func setupLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	log.SetReportTimestamp(false)
}

// issueIDForError maps a failure to its catalog entry, or 0 when none
// applies. manifest distinguishes a missing dependency manifest from
// other missing assets; pass "" when no config is loaded yet.
func issueIDForError(err error, manifest string) issue.Id {
	var engineErr *container.ErrEngineNotAvailable
	var assetErr *provision.AssetMissingError
	var stepErr *pipeline.StepError
	switch {
	case errors.As(err, &engineErr):
		return issue.EngineNotFoundId
	case errors.Is(err, config.ErrParse):
		return issue.ConfigParseErrorId
	case errors.As(err, &assetErr):
		if manifest != "" && slices.Contains(assetErr.Missing, manifest) {
			return issue.ManifestMissingId
		}
		return issue.AssetMissingId
	case errors.As(err, &stepErr):
		if stepErr.Stage == "base" {
			return issue.BaseBuildFailedId
		}
		return issue.AppBuildFailedId
	}
	return 0
}

// printIssueHelp renders the catalog entry matching err's failure class
// to stderr, when one applies.
func printIssueHelp(err error, manifest string) {
	printIssue(issueIDForError(err, manifest))
}

// printIssue renders a catalog entry to stderr.
func printIssue(id issue.Id) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("auto")
	if err != nil {
		log.Warn("failed to render issue help", "issueID", int(id), "error", err)
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
