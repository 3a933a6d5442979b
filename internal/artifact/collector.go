// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/natrelease/natrelease/pkg/platform"
)

const (
	// RawBinaryName is the file name of the raw compiler output that is
	// collected alongside shared libraries.
	RawBinaryName = "release"

	// NativesDirName is the resource subdirectory that holds per-platform binaries.
	NativesDirName = "natives"
)

// ErrMissingArtifacts indicates that expected compiled output or module
// resources are absent.
var ErrMissingArtifacts = errors.New("missing artifacts")

type (
	// FileSet is a set of files relative to Root, sorted lexically.
	FileSet struct {
		Root  string
		Files []string
	}

	// MissingArtifactsError describes which directory lacked the expected files.
	// It wraps ErrMissingArtifacts.
	MissingArtifactsError struct {
		Module string
		Dir    string
		Reason string
	}
)

// Error implements the error interface.
func (e *MissingArtifactsError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("missing artifacts for module %s in %s: %s", e.Module, e.Dir, e.Reason)
	}
	return fmt.Sprintf("missing artifacts in %s: %s", e.Dir, e.Reason)
}

// Unwrap returns ErrMissingArtifacts.
func (e *MissingArtifactsError) Unwrap() error { return ErrMissingArtifacts }

// Len returns the number of files in the set.
func (s FileSet) Len() int { return len(s.Files) }

// sharedLibraryExts are the platform shared-library suffixes that are collected.
//
//nolint:gochecknoglobals // Immutable lookup table.
var sharedLibraryExts = []string{".so", ".dll", ".dylib"}

// IsNativeBinary reports whether a compiler output file should be collected.
func IsNativeBinary(name string) bool {
	return name == RawBinaryName || slices.Contains(sharedLibraryExts, filepath.Ext(name))
}

// NativesDir returns the per-platform native directory under a module's
// resource root: <resources>/natives/<tag>.
func NativesDir(resourcesDir string, tag platform.Tag) string {
	return filepath.Join(resourcesDir, NativesDirName, string(tag))
}

// CompilerOutputDir returns <targetDir>/<triplet>/release, the directory the
// external compilation step populates for a target.
func CompilerOutputDir(targetDir, triplet string) string {
	return filepath.Join(targetDir, triplet, "release")
}

// Collect copies the native binaries found directly in sourceDir into
// destDir/natives/<tag>/ and returns the copied set relative to that
// directory. A missing source directory or an empty match is reported as a
// *MissingArtifactsError rather than an empty result.
func Collect(tag platform.Tag, sourceDir, destDir string) (FileSet, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileSet{}, &MissingArtifactsError{Dir: sourceDir, Reason: "compiler output directory does not exist"}
		}
		return FileSet{}, fmt.Errorf("reading compiler output %s: %w", sourceDir, err)
	}

	outDir := NativesDir(destDir, tag)
	set := FileSet{Root: outDir}

	for _, entry := range entries {
		if entry.IsDir() || !IsNativeBinary(entry.Name()) {
			continue
		}
		if len(set.Files) == 0 {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return FileSet{}, fmt.Errorf("creating natives directory: %w", err)
			}
		}
		if err := copyFile(filepath.Join(sourceDir, entry.Name()), filepath.Join(outDir, entry.Name())); err != nil {
			return FileSet{}, err
		}
		set.Files = append(set.Files, entry.Name())
	}

	if len(set.Files) == 0 {
		return FileSet{}, &MissingArtifactsError{
			Dir:    sourceDir,
			Reason: fmt.Sprintf("no %q binary or %v libraries found", RawBinaryName, sharedLibraryExts),
		}
	}

	slices.Sort(set.Files)
	return set, nil
}

// CleanNatives removes the natives tree of a module's resources so stale
// binaries from earlier targets cannot leak into a package.
func CleanNatives(resourcesDir string) error {
	if err := os.RemoveAll(filepath.Join(resourcesDir, NativesDirName)); err != nil {
		return fmt.Errorf("cleaning natives: %w", err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }() // read-only handle

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", dst, closeErr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}
