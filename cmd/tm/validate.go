// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/LexLattice/true-modules/internal/compose"
)

var (
	validatePlanPath  string
	validateOverrides string
	validateModules   string

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check a plan's resolution without writing anything",
		Long: `Runs resolution and requirement validation for a compose plan and stops
there. The output directory is never touched, so this is safe to run
against a live workspace.`,
		Example: `  tm validate --compose plan.json --modules-root ./catalog`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := compose.Run(cmd.Context(), compose.Options{
				PlanPath:      validatePlanPath,
				OverridesPath: validateOverrides,
				ModulesRoot:   rootOrConfig(validateModules, cfg.ModulesRoot),
				ValidateOnly:  true,
				Logger:        logger,
			})
			if err != nil {
				return planAuthoringExit(err)
			}

			printResolution(cmd, result)
			for _, w := range result.Warnings {
				cmd.Println(WarningStyle.Render("warning: ") + w)
			}
			cmd.Println(SuccessStyle.Render("plan is valid"))
			return nil
		},
	}
)

func init() {
	validateCmd.Flags().StringVar(&validatePlanPath, "compose", "", "compose plan JSON (required)")
	validateCmd.Flags().StringVar(&validateOverrides, "overrides", "", "JSON document overlaying top-level plan keys")
	validateCmd.Flags().StringVar(&validateModules, "modules-root", "", "module catalog root")
	_ = validateCmd.MarkFlagRequired("compose")
}
