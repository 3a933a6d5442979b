// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/issue"
	"github.com/natrelease/natrelease/internal/release"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reaches configuration and the orchestrator through it.
	App struct {
		Config ConfigProvider
		// ReleaseOptions are appended to the options of every Orchestrator
		// the App builds.
		ReleaseOptions []release.Option

		stdout io.Writer
		stderr io.Writer
		flags  rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config         ConfigProvider
		ReleaseOptions []release.Option
		Stdout         io.Writer
		Stderr         io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// rootFlags are the persistent flags shared by every command.
	rootFlags struct {
		configPath      string
		verbose         bool
		target          string
		versionOverride string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config:         deps.Config,
		ReleaseOptions: deps.ReleaseOptions,
		stdout:         deps.Stdout,
		stderr:         deps.Stderr,
	}, nil
}

// loadConfig loads the configuration and applies the --target and
// --version-override flags on top of it.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(a.flags.target); t != "" {
		cfg.Target = t
	}
	if v := strings.TrimSpace(a.flags.versionOverride); v != "" {
		cfg.Project.Version = v
	}
	return cfg, nil
}

// logger returns the structured logger for one command invocation.
func (a *App) logger() *log.Logger {
	level := log.InfoLevel
	if a.flags.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "natrelease",
		ReportTimestamp: true,
		Level:           level,
	})
}

// orchestrator loads the configuration and builds an Orchestrator for it.
func (a *App) orchestrator(ctx context.Context) (*release.Orchestrator, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]release.Option{
		release.WithLogger(a.logger()),
		release.WithOutput(a.stdout, a.stderr),
	}, a.ReleaseOptions...)
	return release.New(cfg, opts...)
}

// fail prints err with any catalog guidance and turns it into an ExitError.
// Usage output is suppressed since the command line itself was valid.
func (a *App) fail(cmd *cobra.Command, err error) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))
	a.renderIssue(issueFor(err))
	return &ExitError{Code: exitCodeFor(err), Err: err}
}

// renderIssue prints the markdown guidance of entry, if any.
func (a *App) renderIssue(entry *issue.Issue) {
	if entry == nil {
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		a.logger().Warn("failed to render issue catalog entry", "issue", entry.Code(), "err", err)
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// issueFor finds the catalog entry explaining err.
func issueFor(err error) *issue.Issue {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		if entry := ae.CatalogIssue(); entry != nil {
			return entry
		}
	}
	return issue.ByCode(string(release.Classify(err)))
}
