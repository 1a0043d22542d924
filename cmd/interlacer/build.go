// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MiXaiLL76/interlacer/internal/provision"
)

var (
	// buildStage selects which stage(s) to build
	buildStage string
	// buildForce bypasses the image cache
	buildForce bool

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build the stage images",
		Long: `Build the conda base image and the application image.

The base stage registers the package channel, updates conda and every
installed package, and installs the pinned interpreter. The app stage
copies the source assets, resolves the named environment from
requirements.txt at the same interpreter pin, and declares the test
entry command. Stages are cached by content digest; unchanged recipes
and assets are not rebuilt.`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVar(&buildStage, "stage", "all", "stage to build: all, base, or app")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even when a cached image exists")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	setupLogging()
	ctx := cmd.Context()

	sel := provision.StageSelect(buildStage)
	switch sel {
	case provision.StageAll, provision.StageBase, provision.StageApp:
	default:
		return fmt.Errorf("invalid --stage %q (want all, base, or app)", buildStage)
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		printIssueHelp(err, "")
		return err
	}

	engine, err := selectEngine(cfg)
	if err != nil {
		printIssueHelp(err, cfg.Manifest)
		return err
	}

	var opts []provision.Option
	if buildForce {
		opts = append(opts, provision.WithForceRebuild(true))
	}

	orch := provision.NewOrchestrator(engine, cfg, opts...)
	out, err := orch.Run(ctx, sel)
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Build failed: ")+formatErrorForDisplay(err, verbose))
		printIssueHelp(err, cfg.Manifest)
		return &ExitError{Code: 1, Err: err}
	}

	reportStage := func(name string, result *provision.StageResult) {
		status := "built"
		if result.Cached {
			status = "cached"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n",
			SuccessStyle.Render("✓ "+name), CmdStyle.Render(result.ImageTag.String()), status)
	}

	reportStage("base", out.Base)
	if out.App != nil {
		reportStage("app", out.App)
	}
	if out.LockfilePath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SubtitleStyle.Render("lockfile"), out.LockfilePath)
	}
	return nil
}
