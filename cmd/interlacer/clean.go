// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MiXaiLL76/interlacer/internal/provision"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove built images and the lockfile",
	Long: `Remove the images recorded in the lockfile (plus the image the current
configuration would produce) and delete the lockfile. Images built under
other configurations are left alone.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, _ []string) error {
	setupLogging()
	ctx := cmd.Context()

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
	if err := orch.Clean(ctx, engine); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ cleaned"))
	return nil
}
