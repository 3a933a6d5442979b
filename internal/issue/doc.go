// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the release CLI.
//
// ActionableError carries the failed operation, the resource involved and
// short remediation hints. The Issue catalog holds longer Markdown guidance
// for each release failure code, rendered with glamour.
package issue
