// SPDX-License-Identifier: MPL-2.0

// Package artifact models release artifacts and assembles them on disk.
//
// The package is organized into four concerns:
//   - descriptor.go: Descriptor/Coordinate naming (remote path, local filenames)
//   - collector.go: copying compiled native binaries into the per-platform resource tree
//   - packager.go: building module jars that include only the current platform's natives
//   - pom.go, checksum.go: POM metadata and repository checksum sidecars
package artifact
