// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errProbesFailed is returned when at least one module could not be checked.
var errProbesFailed = errors.New("one or more index probes failed")

func newCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Ask the public index which modules still need publishing",
		Long: `Probe the public repository index for every configured module at the
current platform and version. Nothing is built or uploaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := app.orchestrator(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}

			var failed []error
			for _, r := range o.Check(cmd.Context()) {
				line := "  " + nameStyle.Render(r.Module)
				switch {
				case r.Err != nil:
					failed = append(failed, r.Err)
					line += ErrorStyle.Render("probe failed") + SubtitleStyle.Render(": "+r.Err.Error())
				case r.Decision.Exists:
					line += CmdStyle.Render(r.Decision.Coordinate.String()) + "  " +
						WarningStyle.Render("published") + SubtitleStyle.Render(fmt.Sprintf(" (HTTP %d), will skip", r.Decision.Status))
				default:
					line += CmdStyle.Render(r.Decision.Coordinate.String()) + "  " +
						SuccessStyle.Render("not published") + SubtitleStyle.Render(fmt.Sprintf(" (HTTP %d), will upload", r.Decision.Status))
				}
				fmt.Fprintln(app.stdout, line)
			}

			if len(failed) > 0 {
				return app.fail(cmd, fmt.Errorf("%w: %w", errProbesFailed, errors.Join(failed...)))
			}
			return nil
		},
	}
}
