// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/pkg/platform"
)

func newPlatformCommand(app *App) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "platform [triplet]",
		Short: "Show the platform tag of a compiler target triplet",
		Long: `Resolve a compiler target triplet to its platform tag.

Without an argument the triplet comes from --target, then $` + config.EnvTarget + `, then
the default ` + platform.DefaultTriplet + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				for _, tag := range platform.AllTags() {
					fmt.Fprintln(app.stdout, tag)
				}
				return nil
			}

			triplet := platformTriplet(app, args)
			tag, err := platform.Resolve(triplet)
			if err != nil {
				return app.fail(cmd, err)
			}

			fmt.Fprintln(app.stdout, keyStyle.Render("triplet")+triplet)
			fmt.Fprintln(app.stdout, keyStyle.Render("tag")+CmdStyle.Render(tag.String()))
			fmt.Fprintln(app.stdout, keyStyle.Render("os")+tag.OS())
			arch := tag.Arch()
			if tag.IsDarwin() {
				arch = "universal"
			}
			fmt.Fprintln(app.stdout, keyStyle.Render("arch")+arch)
			if tag.IsMusl() {
				fmt.Fprintln(app.stdout, keyStyle.Render("libc")+"musl")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list every supported platform tag")
	return cmd
}

func platformTriplet(app *App, args []string) string {
	switch {
	case len(args) == 1:
		return args[0]
	case app.flags.target != "":
		return app.flags.target
	case os.Getenv(config.EnvTarget) != "":
		return os.Getenv(config.EnvTarget)
	default:
		return platform.DefaultTriplet
	}
}
