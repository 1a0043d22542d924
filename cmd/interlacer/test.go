// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MiXaiLL76/interlacer/internal/container"
	"github.com/MiXaiLL76/interlacer/internal/harness"
	"github.com/MiXaiLL76/interlacer/internal/issue"
	"github.com/MiXaiLL76/interlacer/internal/provision"
)

var (
	// testSkipBuild runs the harness against the last built image only
	testSkipBuild bool
	testWorkdir   string
	testEnvVars   []string

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Build (cached) and run the test harness",
		Long: `Build both stage images (cache hits when nothing changed) and run the
application image. The image's default command invokes the test entry
file under the named environment's interpreter; its exit code becomes
this command's exit code (0 = all tests passed).`,
		Args: cobra.NoArgs,
		RunE: runTest,
	}
)

func init() {
	testCmd.Flags().BoolVar(&testSkipBuild, "skip-build", false, "run the image recorded in the lockfile without building")
	testCmd.Flags().StringVar(&testWorkdir, "workdir", "", "override the container working directory")
	testCmd.Flags().StringArrayVarP(&testEnvVars, "env", "e", nil, "set an environment variable for the test process (KEY=VALUE, repeatable)")
}

// parseEnvVars splits KEY=VALUE flag values into a map.
func parseEnvVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env value %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

func runTest(cmd *cobra.Command, _ []string) error {
	setupLogging()
	ctx := cmd.Context()

	envVars, err := parseEnvVars(testEnvVars)
	if err != nil {
		return err
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

	orch := provision.NewOrchestrator(engine, cfg)

	var image string
	if testSkipBuild {
		lf, err := provision.ReadLockfile(orch.Builder().Config().CacheDir)
		if err != nil {
			return fmt.Errorf("no previous build found (run 'interlacer build' first): %w", err)
		}
		image = lf.App.Image
	} else {
		out, err := orch.Run(ctx, provision.StageAll)
		if err != nil {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Build failed: ")+formatErrorForDisplay(err, verbose))
			printIssueHelp(err, cfg.Manifest)
			return &ExitError{Code: 1, Err: err}
		}
		image = out.App.ImageTag.String()
	}

	runner := harness.NewRunner(engine)
	result := runner.Run(ctx, container.ImageTag(image), harness.Options{
		WorkDir: testWorkdir,
		Env:     envVars,
		Stdin:   cmd.InOrStdin(),
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	})

	if result.Error != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Harness failed: ")+formatErrorForDisplay(result.Error, verbose))
		printIssue(issue.HarnessRunFailedId)
		return &ExitError{Code: result.ExitCode, Err: result.Error}
	}
	if !result.ExitCode.IsSuccess() {
		return &ExitError{Code: result.ExitCode}
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ tests passed"))
	return nil
}
