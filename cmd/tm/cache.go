// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/LexLattice/true-modules/internal/issue"
	"github.com/LexLattice/true-modules/internal/syncdir"
)

var (
	cacheOut string

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the workspace sync cache",
	}

	cacheStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "List cached tree digests",
		Long: `Shows every cache entry under <out>/.tm/copy-hashes.json with its content
digest. An entry means the matching destination tree was copied from a
source with that digest and will be skipped while the source is unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := syncdir.LoadCache(rootOrConfig(cacheOut, cfg.OutDir))
			if err != nil {
				return err
			}

			entries := cache.Entries()
			if len(entries) == 0 {
				cmd.Println(SubtitleStyle.Render("cache is empty"))
				return nil
			}
			keys := make([]string, 0, len(entries))
			for key := range entries {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				cmd.Printf("%s %s\n", IDStyle.Render(key), entries[key])
			}
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete the sync cache",
		Long: `Removes <out>/.tm/copy-hashes.json. The next compose run recopies every
module and glue tree; destinations are left in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := syncdir.LoadCache(rootOrConfig(cacheOut, cfg.OutDir))
			if err != nil {
				return err
			}
			if err := os.Remove(cache.Path()); err != nil && !os.IsNotExist(err) {
				return issue.Wrap(issue.CodeIO, err, "remove sync cache %s", cache.Path())
			}
			cmd.Println(SuccessStyle.Render("cache cleared"))
			return nil
		},
	}
)

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheOut, "out", "", "workspace output directory")
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
