// SPDX-License-Identifier: MPL-2.0

// Package platform classifies compilation target triplets into the canonical
// platform tags used for native artifact naming and directory layout.
//
// A triplet such as "x86_64-unknown-linux-musl" names a CPU architecture, a
// vendor, an operating system and optionally an ABI. Resolve maps every
// supported triplet to exactly one Tag; unrecognized triplets fail with an
// UnsupportedPlatformError so that a run aborts before any file or network I/O.
package platform
