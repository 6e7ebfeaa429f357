// SPDX-License-Identifier: MPL-2.0

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/LexLattice/true-modules/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage tm configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := config.LoadOptions{}
			if cfgFile != "" {
				opts.ConfigFilePath = cfgFile
			}
			loaded, path, err := config.LoadWithPath(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if path == "" {
				cmd.Println(SubtitleStyle.Render("no config file found, showing defaults"))
			} else {
				cmd.Println(SubtitleStyle.Render("loaded from: ") + path)
			}
			rendered, err := loaded.Render()
			if err != nil {
				return err
			}
			cmd.Print(rendered)
			return nil
		},
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Creates a config file with the built-in defaults at the platform config
location, or at the path given via --config. Fails if the file already
exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, config.ConfigFileName)
			}

			if err := config.WriteDefault(path); err != nil {
				return err
			}
			cmd.Println(SuccessStyle.Render("config written: ") + path)
			return nil
		},
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
