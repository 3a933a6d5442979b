// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/natrelease/natrelease/internal/release"
)

func newPlanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "plan <target>",
		Short:     "Print the tasks a target would run, in execution order",
		Args:      cobra.ExactArgs(1),
		ValidArgs: targetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := release.ParseTarget(args[0])
			if err != nil {
				return app.fail(cmd, err)
			}
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			g, err := release.PlanGraph(cfg, target)
			if err != nil {
				return app.fail(cmd, err)
			}
			order, err := g.TopologicalSort()
			if err != nil {
				return app.fail(cmd, err)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("plan "+string(target)))
			for i, name := range order {
				line := fmt.Sprintf("%3d. %s", i+1, CmdStyle.Render(name))
				if preds := g.Predecessors(name); len(preds) > 0 {
					line += SubtitleStyle.Render(" after " + strings.Join(preds, ", "))
				}
				fmt.Fprintln(app.stdout, line)
			}
			return nil
		},
	}
}

func targetNames() []string {
	targets := release.Targets()
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = string(t)
	}
	return out
}
