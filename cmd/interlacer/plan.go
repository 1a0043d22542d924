// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/MiXaiLL76/interlacer/internal/provision"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a build would produce without building",
	Long: `Render both stage recipes and the planned image tags without touching
the container engine. Useful for reviewing the exact build steps a
configuration produces.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, _ []string) error {
	setupLogging()
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		printIssueHelp(err, "")
		return err
	}

	// The engine is never invoked for a plan; a nil engine is fine because
	// Plan only renders recipes and computes tags.
	orch := provision.NewOrchestrator(nil, cfg)
	plan, err := orch.Plan()
	if err != nil {
		return err
	}

	var md strings.Builder
	md.WriteString("# Build plan\n\n")
	fmt.Fprintf(&md, "Base image tag: `%s`\n\n", plan.BaseTag)
	fmt.Fprintf(&md, "Entry command: `%s`\n\n", strings.Join(plan.EntryCommand, " "))
	md.WriteString("Assets:\n\n")
	for _, asset := range plan.Assets {
		fmt.Fprintf(&md, "- `%s`\n", asset)
	}
	md.WriteString("\n## Base stage\n\n```dockerfile\n")
	md.WriteString(plan.BaseDockerfile)
	md.WriteString("```\n\n## App stage\n\n```dockerfile\n")
	md.WriteString(plan.AppDockerfile)
	md.WriteString("```\n")

	rendered, err := glamour.Render(md.String(), "auto")
	if err != nil {
		// Fall back to the raw markdown when the terminal renderer fails.
		fmt.Fprint(cmd.OutOrStdout(), md.String())
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
