// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: file tree
// fixtures, environment management and controllable clocks for code that
// polls or waits.
package testutil
