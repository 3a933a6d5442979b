// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/natrelease/natrelease/pkg/platform"
)

var (
	// ErrInvalidDescriptor is the sentinel wrapped by InvalidDescriptorError.
	ErrInvalidDescriptor = errors.New("invalid artifact descriptor")
	// ErrInvalidVersion is returned when a version is not a semantic version.
	ErrInvalidVersion = errors.New("invalid version")
)

type (
	// Descriptor identifies one publishable module build. Platform is empty for
	// modules that are not platform-scoped (the interface/metadata module).
	Descriptor struct {
		Module     string
		ArtifactID string
		Platform   platform.Tag
		Version    string
		Group      string
	}

	// Coordinate is the remote repository address of an artifact version.
	Coordinate struct {
		Group      string
		ArtifactID string
		Version    string
	}

	// InvalidDescriptorError collects field-level validation errors.
	// It wraps ErrInvalidDescriptor for errors.Is compatibility.
	InvalidDescriptorError struct {
		Module      string
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid artifact descriptor for module %q: %s", e.Module, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidDescriptor.
func (e *InvalidDescriptorError) Unwrap() error { return ErrInvalidDescriptor }

// Name returns the published artifact id. Platform-scoped modules append the
// platform tag, e.g. "udpqueue-native-linux-x86-64".
func (d Descriptor) Name() string {
	if d.Platform == "" {
		return d.ArtifactID
	}
	return d.ArtifactID + "-" + string(d.Platform)
}

// Coordinate returns the remote coordinate of the descriptor.
func (d Descriptor) Coordinate() Coordinate {
	return Coordinate{Group: d.Group, ArtifactID: d.Name(), Version: d.Version}
}

// FileName returns the local/remote file name for a classifier and extension,
// following the repository layout convention name-version[-classifier].ext.
func (d Descriptor) FileName(classifier, ext string) string {
	var sb strings.Builder
	sb.WriteString(d.Name())
	sb.WriteString("-")
	sb.WriteString(d.Version)
	if classifier != "" {
		sb.WriteString("-")
		sb.WriteString(classifier)
	}
	sb.WriteString(".")
	sb.WriteString(strings.TrimPrefix(ext, "."))
	return sb.String()
}

// Validate checks that all naming inputs are present and well formed.
func (d Descriptor) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Module) == "" {
		errs = append(errs, errors.New("module name must not be empty"))
	}
	if strings.TrimSpace(d.ArtifactID) == "" || strings.ContainsAny(d.ArtifactID, "/ ") {
		errs = append(errs, fmt.Errorf("artifact id %q must be non-empty and contain no spaces or slashes", d.ArtifactID))
	}
	if strings.TrimSpace(d.Group) == "" || strings.Contains(d.Group, "/") {
		errs = append(errs, fmt.Errorf("group %q must be a dotted identifier", d.Group))
	}
	if err := ValidateVersion(d.Version); err != nil {
		errs = append(errs, err)
	}
	if d.Platform != "" {
		if ok, tagErrs := d.Platform.IsValid(); !ok {
			errs = append(errs, tagErrs...)
		}
	}
	if len(errs) > 0 {
		return &InvalidDescriptorError{Module: d.Module, FieldErrors: errs}
	}
	return nil
}

// ValidateVersion reports whether version is a semantic version. A leading
// "v" is accepted but not required; "0.1.1-rc" is valid.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("%w: version must not be empty", ErrInvalidVersion)
	}
	if !semver.IsValid(canonicalVersion(version)) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return nil
}

func canonicalVersion(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// GroupPath returns the group with dots replaced by slashes.
func (c Coordinate) GroupPath() string {
	return strings.ReplaceAll(c.Group, ".", "/")
}

// Path returns the repository directory of the version, without a trailing
// slash: group/path/artifact/version.
func (c Coordinate) Path() string {
	return path.Join(c.GroupPath(), c.ArtifactID, c.Version)
}

// String returns the conventional group:artifact:version form.
func (c Coordinate) String() string {
	return c.Group + ":" + c.ArtifactID + ":" + c.Version
}
