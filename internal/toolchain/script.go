// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrScriptFailed is the sentinel for build scripts exiting non-zero.
var ErrScriptFailed = errors.New("build script failed")

type (
	// ScriptOptions configures RunScript.
	ScriptOptions struct {
		// Script is POSIX shell source.
		Script string
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env is appended to the inherited environment as KEY=VALUE pairs.
		Env    []string
		Stdout io.Writer
		Stderr io.Writer
	}

	// ScriptError reports a script that ran but exited non-zero.
	ScriptError struct {
		ExitCode int
	}
)

// Error implements error.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("build script exited with status %d", e.ExitCode)
}

// Unwrap returns ErrScriptFailed.
func (e *ScriptError) Unwrap() error { return ErrScriptFailed }

// ParseScript checks script for syntax errors without running it.
func ParseScript(script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "build"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// RunScript interprets opts.Script in-process. An empty script is a no-op.
// A non-zero exit yields *ScriptError; parse and interpreter failures are
// returned as plain errors.
func RunScript(ctx context.Context, opts ScriptOptions) error {
	if strings.TrimSpace(opts.Script) == "" {
		return nil
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(opts.Script), "build")
	if err != nil {
		return fmt.Errorf("failed to parse build script: %w", err)
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	env := append(os.Environ(), opts.Env...)
	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &ScriptError{ExitCode: int(exitStatus)}
		}
		return fmt.Errorf("build script execution failed: %w", err)
	}
	return nil
}
