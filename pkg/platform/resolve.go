// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// osComponents records which OS/ABI markers a triplet carries.
type osComponents struct {
	linux   bool
	windows bool
	darwin  bool
	musl    bool
}

// Resolve maps a target triplet to its platform tag.
//
// Rules are checked in order and the first match wins:
//  1. linux with a musl ABI: linux-musl-<arch>
//  2. linux: linux-<arch>
//  3. windows: win-<arch>
//  4. any Apple/darwin OS, for any architecture: darwin
//  5. the empty triplet: DefaultTag (DefaultTriplet is assumed)
//  6. anything else fails with *UnsupportedPlatformError
//
// Classification works on dash-separated components, not on raw substrings,
// and the architecture is always taken from the first component.
func Resolve(triplet string) (Tag, error) {
	if triplet == "" {
		return DefaultTag, nil
	}

	components := strings.Split(triplet, "-")
	arch, archOK := parseArch(components[0])
	oses := scanComponents(components[1:])

	if oses.linux && oses.windows {
		return "", &UnsupportedPlatformError{Triplet: triplet, Reason: "names both linux and windows"}
	}

	switch {
	case oses.linux && oses.musl:
		if !archOK {
			return "", unknownArch(triplet)
		}
		return Tag("linux-musl-" + arch), nil
	case oses.linux:
		if !archOK {
			return "", unknownArch(triplet)
		}
		return Tag("linux-" + arch), nil
	case oses.windows:
		if !archOK {
			return "", unknownArch(triplet)
		}
		return Tag("win-" + arch), nil
	case oses.darwin:
		return DarwinUniversal, nil
	default:
		return "", &UnsupportedPlatformError{Triplet: triplet}
	}
}

func scanComponents(components []string) osComponents {
	var oses osComponents
	for _, c := range components {
		switch {
		case c == Linux:
			oses.linux = true
		case c == Windows:
			oses.windows = true
		case c == Darwin || c == macOS || c == apple:
			oses.darwin = true
		case strings.HasPrefix(c, musl):
			oses.musl = true
		}
	}
	return oses
}

func unknownArch(triplet string) error {
	return &UnsupportedPlatformError{Triplet: triplet, Reason: "unrecognized architecture"}
}
