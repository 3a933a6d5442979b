// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the natrelease command tree.
//
// Every task kind (clean, build, collect, stage, publish, release) is a
// subcommand that runs the closure of that task through a release
// Orchestrator and prints a per-module summary. Exit codes distinguish
// failures, configuration problems, incomplete releases and unsupported
// platforms; see ExitCode.
package cmd
