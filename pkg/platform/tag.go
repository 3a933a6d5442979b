// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"strings"
)

const (
	LinuxMuslX8664   Tag = "linux-musl-x86-64"
	LinuxMuslX86     Tag = "linux-musl-x86"
	LinuxMuslAArch64 Tag = "linux-musl-aarch64"
	LinuxMuslARM     Tag = "linux-musl-arm"

	LinuxX8664   Tag = "linux-x86-64"
	LinuxX86     Tag = "linux-x86"
	LinuxAArch64 Tag = "linux-aarch64"
	LinuxARM     Tag = "linux-arm"

	WinX8664   Tag = "win-x86-64"
	WinX86     Tag = "win-x86"
	WinAArch64 Tag = "win-aarch64"
	WinARM     Tag = "win-arm"

	// DarwinUniversal is shared by every Apple architecture. The packaged
	// binary is treated as architecture-agnostic (universal) on this OS.
	DarwinUniversal Tag = "darwin"

	// DefaultTriplet is assumed when no explicit target was supplied.
	DefaultTriplet = "x86_64-unknown-linux-gnu"
	// DefaultTag is the tag of DefaultTriplet.
	DefaultTag = LinuxX8664
)

var (
	// ErrUnsupportedPlatform is the sentinel wrapped by UnsupportedPlatformError.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrInvalidTag is the sentinel wrapped by InvalidTagError.
	ErrInvalidTag = errors.New("invalid platform tag")

	//nolint:gochecknoglobals // Immutable lookup table.
	allTags = []Tag{
		LinuxMuslX8664, LinuxMuslX86, LinuxMuslAArch64, LinuxMuslARM,
		LinuxX8664, LinuxX86, LinuxAArch64, LinuxARM,
		WinX8664, WinX86, WinAArch64, WinARM,
		DarwinUniversal,
	}
)

type (
	// Tag is the canonical platform identifier derived from a target triplet.
	// It is used as the native resource directory name and as the suffix of
	// platform-specific artifact ids.
	Tag string

	// UnsupportedPlatformError is returned by Resolve for triplets that do not
	// map to any Tag. It wraps ErrUnsupportedPlatform.
	UnsupportedPlatformError struct {
		Triplet string
		Reason  string
	}

	// InvalidTagError is returned when a Tag value is not one of the known tags.
	InvalidTagError struct {
		Value Tag
	}
)

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unknown platform %q: %s", e.Triplet, e.Reason)
	}
	return fmt.Sprintf("unknown platform %q", e.Triplet)
}

// Unwrap returns ErrUnsupportedPlatform for errors.Is.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Error implements the error interface.
func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid platform tag %q", e.Value)
}

// Unwrap returns ErrInvalidTag for errors.Is.
func (e *InvalidTagError) Unwrap() error { return ErrInvalidTag }

// AllTags returns every known platform tag in a stable order.
func AllTags() []Tag {
	out := make([]Tag, len(allTags))
	copy(out, allTags)
	return out
}

// String returns the tag as a string.
func (t Tag) String() string { return string(t) }

// IsValid reports whether t is one of the known tags. The zero value is not
// valid; callers modelling "no platform" should keep an empty Tag separately.
func (t Tag) IsValid() (bool, []error) {
	for _, known := range allTags {
		if t == known {
			return true, nil
		}
	}
	return false, []error{&InvalidTagError{Value: t}}
}

// OS returns the operating system family of the tag.
func (t Tag) OS() string {
	switch {
	case t == DarwinUniversal:
		return Darwin
	case strings.HasPrefix(string(t), "win-"):
		return Windows
	case strings.HasPrefix(string(t), "linux-"):
		return Linux
	default:
		return ""
	}
}

// Arch returns the architecture suffix of the tag, or "" for the darwin tag
// where the architecture is erased.
func (t Tag) Arch() string {
	s := string(t)
	switch t.OS() {
	case Linux:
		s = strings.TrimPrefix(s, "linux-")
		return strings.TrimPrefix(s, "musl-")
	case Windows:
		return strings.TrimPrefix(s, "win-")
	default:
		return ""
	}
}

// IsMusl reports whether the tag is a musl-libc Linux tag.
func (t Tag) IsMusl() bool {
	return strings.HasPrefix(string(t), "linux-musl-")
}

// IsDarwin reports whether the tag is the unified Apple tag.
func (t Tag) IsDarwin() bool { return t == DarwinUniversal }
