// SPDX-License-Identifier: MPL-2.0

package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LexLattice/true-modules/internal/manifest"
	"github.com/LexLattice/true-modules/internal/plan"
	"github.com/LexLattice/true-modules/internal/ports"
)

var (
	portsPlanPath string
	portsModules  string

	portsCmd = &cobra.Command{
		Use:   "ports",
		Short: "Show the provider census for a plan",
		Long: `Lists every port name exported by the plan's selected modules together
with all modules providing it. The census is independent of provider
resolution, so it works even for plans with unresolved conflicts. This is
the same mapping written to ports.map.json.`,
		Example: `  tm ports --compose plan.json --modules-root ./catalog`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := plan.Load(portsPlanPath)
			if err != nil {
				return planAuthoringExit(err)
			}
			manifests, err := manifest.LoadAll(rootOrConfig(portsModules, cfg.ModulesRoot), p.ModuleIDs())
			if err != nil {
				return err
			}
			reg, err := ports.NewRegistry(manifest.PortSurfaces(manifests))
			if err != nil {
				return err
			}

			census := reg.NameCensus()
			names := make([]string, 0, len(census))
			for name := range census {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				cmd.Printf("%s: %s\n",
					IDStyle.Render(name), strings.Join(census[name], ", "))
			}
			return nil
		},
	}
)

func init() {
	portsCmd.Flags().StringVar(&portsPlanPath, "compose", "", "compose plan JSON (required)")
	portsCmd.Flags().StringVar(&portsModules, "modules-root", "", "module catalog root")
	_ = portsCmd.MarkFlagRequired("compose")
}
