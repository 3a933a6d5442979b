// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/natrelease/natrelease/internal/config"
)

// newConfigCommand creates the `natrelease config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the natrelease configuration",
		Long: `Inspect or create the natrelease configuration.

Configuration is read from ./` + config.ConfigFileName + ` (or --config) and
overridden by environment variables such as ` + config.EnvUsername + `,
` + config.EnvPassword + `, ` + config.EnvStagingProfile + ` and ` + config.EnvSigningKey + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var reveal bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}

			source := cfg.Source
			if source == "" {
				source = "built-in defaults and environment"
			}
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("// source: "+source))
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg, !reveal))
			return nil
		},
	}
	showCmd.Flags().BoolVar(&reveal, "reveal", false, "print passwords and key material unmasked")
	cfgCmd.AddCommand(showCmd)

	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteStarter(path); err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("Created ")+CmdStyle.Render(path))
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", config.ConfigFileName, "file to create")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}
