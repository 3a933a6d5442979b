// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// OS family names as they appear in target triplet components.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"

	// apple is the vendor component used by every Apple target (macOS, iOS, ...).
	apple = "apple"
	// macOS is accepted as an alias for darwin in newer triplets.
	macOS = "macos"
	// musl is the ABI prefix for musl-libc Linux targets (musl, musleabi, musleabihf).
	musl = "musl"
)

// Architecture suffixes used in platform tags.
const (
	ArchX8664   = "x86-64"
	ArchX86     = "x86"
	ArchAArch64 = "aarch64"
	ArchARM     = "arm"
)

// archPrefixes lists triplet architecture prefixes in match order. "x86_64"
// must be tested before "x86" because the latter is a prefix of the former.
var archPrefixes = []struct {
	prefix string
	arch   string
}{
	{"x86_64", ArchX8664},
	{"i686", ArchX86},
	{"i586", ArchX86},
	{"i386", ArchX86},
	{"x86", ArchX86},
	{"aarch64", ArchAArch64},
	{"arm", ArchARM},
}

// parseArch returns the tag architecture for the first triplet component.
func parseArch(component string) (string, bool) {
	for _, p := range archPrefixes {
		if strings.HasPrefix(component, p.prefix) {
			return p.arch, true
		}
	}
	return "", false
}
