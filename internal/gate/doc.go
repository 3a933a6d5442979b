// SPDX-License-Identifier: MPL-2.0

// Package gate decides whether a module coordinate still needs publishing by
// probing the public artifact repository. The probe is read-only and its
// result is never cached: every call re-checks the remote index.
package gate
