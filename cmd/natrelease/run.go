// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/internal/issue"
	"github.com/natrelease/natrelease/internal/release"
)

//nolint:gochecknoglobals // Immutable lookup table.
var taskShort = map[release.Target]string{
	release.TargetClean:   "Remove staged artifacts and stale native binaries",
	release.TargetBuild:   "Run the configured build script",
	release.TargetCollect: "Copy compiled native binaries into the resources tree",
	release.TargetStage:   "Package, checksum and sign every module into the staging dir",
	release.TargetPublish: "Upload staged modules the public index does not have yet",
	release.TargetRelease: "Close and promote the uploaded staging repositories",
}

// newTaskCommands creates one command per task kind. Each runs the task
// closure of its kind.
func newTaskCommands(app *App) []*cobra.Command {
	out := make([]*cobra.Command, 0, len(release.Targets()))
	for _, target := range release.Targets() {
		out = append(out, &cobra.Command{
			Use:   string(target),
			Short: taskShort[target],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTarget(cmd, app, target)
			},
		})
	}
	return out
}

func runTarget(cmd *cobra.Command, app *App, target release.Target) error {
	o, err := app.orchestrator(cmd.Context())
	if err != nil {
		return app.fail(cmd, err)
	}

	rep, err := o.Run(cmd.Context(), target)
	if err != nil {
		return app.fail(cmd, err)
	}

	renderReport(app.stdout, rep, app.flags.verbose)

	code := reportExitCode(rep)
	if code == ExitOK {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	app.renderIssue(issue.ByCode(string(rep.Code())))
	return &ExitError{Code: code, Err: rep.Err()}
}

// renderReport prints one line per module and, when verbose or when a task
// did not succeed, one line per task.
func renderReport(w io.Writer, rep *release.Report, verbose bool) {
	fmt.Fprintln(w, TitleStyle.Render("natrelease "+string(rep.Target))+
		SubtitleStyle.Render(fmt.Sprintf(" %s (%s) version %s", rep.Platform, rep.Triplet, rep.Version)))
	fmt.Fprintln(w)

	for _, m := range rep.Modules {
		fmt.Fprintln(w, "  "+nameStyle.Render(m.Name)+CmdStyle.Render(m.Coordinate.String())+"  "+moduleStatus(m))
		if verbose {
			for _, f := range m.Staged {
				fmt.Fprintln(w, "    "+VerboseStyle.Render(f))
			}
		}
	}

	var tasks []string
	for _, t := range rep.Tasks {
		if !verbose && t.Outcome == dag.Succeeded {
			continue
		}
		line := "  " + taskStyle.Render(t.Name) + outcomeStyle(t.Outcome).Render(t.Outcome.String())
		switch {
		case t.BlockedBy != "":
			line += SubtitleStyle.Render(" by " + t.BlockedBy)
		case t.Err != nil:
			line += SubtitleStyle.Render(": " + t.Err.Error())
		case verbose:
			line += VerboseStyle.Render(" " + t.Duration.String())
		}
		tasks = append(tasks, line)
	}
	if len(tasks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SubtitleStyle.Render("Tasks:"))
		fmt.Fprintln(w, strings.Join(tasks, "\n"))
	}
}

func moduleStatus(m release.ModuleReport) string {
	var notes []string
	switch {
	case m.AlreadyPublished:
		notes = append(notes, "already published")
	case m.LocalOnly:
		notes = append(notes, "local only")
	}
	if m.RepositoryID != "" {
		notes = append(notes, m.RepositoryID)
	}
	if m.Uploaded > 0 {
		notes = append(notes, fmt.Sprintf("%d file(s) uploaded", m.Uploaded))
	}

	status := outcomeStyle(m.Outcome).Render(m.State.String())
	if len(notes) > 0 {
		status += SubtitleStyle.Render(" (" + strings.Join(notes, ", ") + ")")
	}
	return status
}

func outcomeStyle(o dag.Outcome) lipgloss.Style {
	switch o {
	case dag.Succeeded:
		return SuccessStyle
	case dag.Skipped, dag.Incomplete:
		return WarningStyle
	case dag.Failed, dag.Blocked:
		return ErrorStyle
	default:
		return SubtitleStyle
	}
}
