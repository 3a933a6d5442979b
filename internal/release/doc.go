// SPDX-License-Identifier: MPL-2.0

// Package release runs the release pipeline of a multi-module native library.
//
// An Orchestrator turns the configuration into a task graph (clean, build,
// then collect, stage, publish and release per module) and executes the
// closure of a requested Target. Each module moves through
// Unstaged -> Staged -> Uploaded -> Validating -> Released, or Failed.
//
// Publishing asks the publish gate first and skips versions already on the
// public index, so re-running a release uploads nothing twice. Without
// staging credentials every publish and release task is skipped and the
// run only builds the local staging repository.
//
// A failing module blocks its own downstream tasks and the publish of
// modules that depend on it; sibling modules continue. Polling the remote
// is bounded by remote.max_attempts; running out yields a
// ReleaseTimeoutError and an Incomplete outcome rather than a failure.
package release
