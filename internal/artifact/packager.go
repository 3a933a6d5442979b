// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/natrelease/natrelease/pkg/platform"
)

const manifestPath = "META-INF/MANIFEST.MF"

// archiveModTime is stamped on every entry so that archive layout does not
// depend on when or where the package was assembled.
//
//nolint:gochecknoglobals // Immutable timestamp.
var archiveModTime = time.Date(1980, time.February, 1, 0, 0, 0, 0, time.UTC)

type (
	// PackageOptions configures Package.
	PackageOptions struct {
		// SourceDir is the directory whose contents become the archive root.
		SourceDir string
		// Platform selects the only natives/<tag> subtree to include. When
		// empty, every natives/ subtree is excluded.
		Platform platform.Tag
		// RequireNatives fails the package when no file of the selected
		// platform subtree was included.
		RequireNatives bool
		// Output is the archive file to write.
		Output string
		// Module is used for error reporting only.
		Module string
	}

	// PackageResult lists the archive entries that were written.
	PackageResult struct {
		Path    string
		Entries []string
	}
)

// IncludeInPackage reports whether a slash-separated path relative to the
// resource root belongs in the archive for tag: everything outside natives/,
// plus natives/<tag>/... for the current platform.
func IncludeInPackage(rel string, tag platform.Tag) bool {
	first, rest, found := strings.Cut(rel, "/")
	if first != NativesDirName {
		return true
	}
	if !found || tag == "" {
		return false
	}
	dir, _, _ := strings.Cut(rest, "/")
	return dir == string(tag)
}

// Package writes a jar archive of opts.SourceDir. Entries are written in
// lexical order with a fixed modification time.
func Package(opts PackageOptions) (_ PackageResult, err error) {
	info, err := os.Stat(opts.SourceDir)
	if err != nil || !info.IsDir() {
		return PackageResult{}, &MissingArtifactsError{Module: opts.Module, Dir: opts.SourceDir, Reason: "resource directory does not exist"}
	}

	var files []string
	nativeCount := 0
	walkErr := filepath.WalkDir(opts.SourceDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(opts.SourceDir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if !IncludeInPackage(rel, opts.Platform) {
			return nil
		}
		if strings.HasPrefix(rel, NativesDirName+"/") {
			nativeCount++
		}
		files = append(files, rel)
		return nil
	})
	if walkErr != nil {
		return PackageResult{}, fmt.Errorf("scanning %s: %w", opts.SourceDir, walkErr)
	}

	if len(files) == 0 {
		return PackageResult{}, &MissingArtifactsError{Module: opts.Module, Dir: opts.SourceDir, Reason: "no files to package"}
	}
	if opts.RequireNatives && nativeCount == 0 {
		return PackageResult{}, &MissingArtifactsError{
			Module: opts.Module,
			Dir:    NativesDir(opts.SourceDir, opts.Platform),
			Reason: "no native binaries for platform " + string(opts.Platform),
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return PackageResult{}, fmt.Errorf("creating output directory: %w", err)
	}
	out, err := os.Create(opts.Output)
	if err != nil {
		return PackageResult{}, fmt.Errorf("creating archive %s: %w", opts.Output, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing archive %s: %w", opts.Output, closeErr)
		}
	}()

	zw := zip.NewWriter(out)
	result := PackageResult{Path: opts.Output}

	hasManifest := false
	for _, f := range files {
		if f == manifestPath {
			hasManifest = true
			break
		}
	}
	if !hasManifest {
		if err := writeEntry(zw, manifestPath, strings.NewReader("Manifest-Version: 1.0\r\nCreated-By: natrelease\r\n\r\n"), 0o644); err != nil {
			return PackageResult{}, err
		}
		result.Entries = append(result.Entries, manifestPath)
	}

	for _, rel := range files {
		if err := addFile(zw, opts.SourceDir, rel); err != nil {
			return PackageResult{}, err
		}
		result.Entries = append(result.Entries, rel)
	}

	if err := zw.Close(); err != nil {
		return PackageResult{}, fmt.Errorf("finalizing archive %s: %w", opts.Output, err)
	}
	return result, nil
}

func addFile(zw *zip.Writer, root, rel string) error {
	src := filepath.Join(root, filepath.FromSlash(rel))
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = f.Close() }() // read-only handle

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	return writeEntry(zw, rel, f, info.Mode().Perm())
}

func writeEntry(zw *zip.Writer, name string, r io.Reader, mode fs.FileMode) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveModTime,
	}
	hdr.SetMode(mode)

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// ErrEmptyArchive is returned by ListArchive for archives without entries.
var ErrEmptyArchive = errors.New("archive has no entries")

// ListArchive returns the entry names of a zip/jar archive in stored order.
func ListArchive(archive string) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", archive, err)
	}
	defer func() { _ = r.Close() }() // read-only handle

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	if len(names) == 0 {
		return nil, ErrEmptyArchive
	}
	return names, nil
}
