// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/internal/issue"
	"github.com/natrelease/natrelease/internal/release"
	"github.com/natrelease/natrelease/pkg/platform"
)

// Process exit codes.
const (
	ExitOK ExitCode = iota
	ExitFailure
	ExitUsage
	ExitIncomplete
	ExitUnsupportedPlatform
)

type (
	// ExitCode is the process exit status.
	ExitCode int

	// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
	ExitError struct {
		Code ExitCode
		Err  error
	}
)

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps a setup error to an exit code.
func exitCodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return ExitUnsupportedPlatform
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidModule),
		errors.Is(err, config.ErrInvalidSetting),
		errors.Is(err, config.ErrConfigExists),
		errors.Is(err, release.ErrUnknownTarget):
		return ExitUsage
	default:
		var ae *issue.ActionableError
		if errors.As(err, &ae) && ae.Issue == issue.ConfigLoadFailedId {
			return ExitUsage
		}
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			return ExitUsage
		}
		return ExitFailure
	}
}

// reportExitCode maps a finished run to an exit code. Failures win over
// incomplete polling.
func reportExitCode(r *release.Report) ExitCode {
	switch {
	case r.Failed():
		return ExitFailure
	case r.Incomplete():
		return ExitIncomplete
	default:
		return ExitOK
	}
}
