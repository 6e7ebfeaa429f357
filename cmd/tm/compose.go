// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LexLattice/true-modules/internal/compose"
	"github.com/LexLattice/true-modules/internal/syncdir"
)

var (
	composePlanPath  string
	composeOverrides string
	composeModules   string
	composeGlue      string
	composeOut       string

	composeCmd = &cobra.Command{
		Use:   "compose",
		Short: "Resolve providers and materialize the workspace",
		Long: `Runs the full composition pipeline: loads the plan and the selected
module manifests, resolves exactly one provider per port major, validates
every declared requirement, then copies module and glue sources into the
output workspace and writes report artifacts.

Copies are content-addressed. Re-running an unchanged plan performs zero
copies and leaves every artifact byte-identical.`,
		Example: `  tm compose --compose plan.json --modules-root ./catalog --out ./build
  tm compose --compose plan.json --overrides ci-overrides.json --out ./build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outDir := rootOrConfig(composeOut, cfg.OutDir)
			result, err := compose.Run(cmd.Context(), compose.Options{
				PlanPath:      composePlanPath,
				OverridesPath: composeOverrides,
				ModulesRoot:   rootOrConfig(composeModules, cfg.ModulesRoot),
				GlueRoot:      rootOrConfig(composeGlue, cfg.GlueRoot),
				OutDir:        outDir,
				Composer:      composerIdentity(),
				Logger:        logger,
			})
			if err != nil {
				return planAuthoringExit(err)
			}

			printResolution(cmd, result)
			printSyncSummary(cmd, result.Actions)
			cmd.Println(SuccessStyle.Render("workspace materialized: ") + outDir)
			return nil
		},
	}
)

func init() {
	composeCmd.Flags().StringVar(&composePlanPath, "compose", "", "compose plan JSON (required)")
	composeCmd.Flags().StringVar(&composeOverrides, "overrides", "", "JSON document overlaying top-level plan keys")
	composeCmd.Flags().StringVar(&composeModules, "modules-root", "", "module catalog root")
	composeCmd.Flags().StringVar(&composeGlue, "glue-root", "", "glue catalog root (default: modules root)")
	composeCmd.Flags().StringVar(&composeOut, "out", "", "output workspace directory")
	_ = composeCmd.MarkFlagRequired("compose")
}

// rootOrConfig prefers the flag value over the configured default.
func rootOrConfig(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func printResolution(cmd *cobra.Command, result *compose.Result) {
	for _, p := range result.Resolution.Providers() {
		cmd.Printf("%s -> %s (%s)\n",
			IDStyle.Render(p.Port.Key()), p.Chosen, p.Reason)
	}
}

func printSyncSummary(cmd *cobra.Command, actions map[string]syncdir.Action) {
	var copied, skipped, removed int
	for _, a := range actions {
		switch a {
		case syncdir.ActionCopy:
			copied++
		case syncdir.ActionSkip:
			skipped++
		case syncdir.ActionRemove:
			removed++
		}
	}
	cmd.Println(SubtitleStyle.Render(
		fmt.Sprintf("sync: %d copied, %d unchanged, %d removed", copied, skipped, removed)))
}
