// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/natrelease/natrelease/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the natrelease command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "natrelease",
		Short: "Release a multi-module native library to a Maven staging repository",
		Long: TitleStyle.Render("natrelease") + SubtitleStyle.Render(" - Release native libraries to Maven Central") + `

natrelease classifies the compiler target, packages the interface module
and the platform-specific native module, signs every file and pushes them
through a Nexus staging repository. Versions already on the public index
are skipped, so a release can be re-run safely.

Without staging credentials natrelease runs in local-only mode and stops
after building the local staging repository.

` + SubtitleStyle.Render("Examples:") + `
  natrelease stage                          Package and sign into the staging dir
  natrelease release                        Run the whole pipeline
  natrelease release --target aarch64-apple-darwin
  natrelease plan publish                   Show the tasks publish would run
  natrelease platform --list                List every platform tag`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is ./natrelease.cue)")
	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&app.flags.target, "target", "", "compiler target triplet (overrides $TARGET and the config file)")
	rootCmd.PersistentFlags().StringVar(&app.flags.versionOverride, "version-override", "", "release version (overrides project.version)")

	for _, c := range newTaskCommands(app) {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(newPlanCommand(app))
	rootCmd.AddCommand(newCheckCommand(app))
	rootCmd.AddCommand(newPlatformCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(int(ExitFailure))
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(ExitFailure))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
