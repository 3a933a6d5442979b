// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"crypto/md5"  //nolint:gosec // Required by the repository layout, not used for security.
	"crypto/sha1" //nolint:gosec // Required by the repository layout, not used for security.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// ErrChecksumMismatch indicates a checksum sidecar does not match its file.
var ErrChecksumMismatch = errors.New("checksum mismatch")

type (
	// ChecksumAlgorithm names a digest and its sidecar extension.
	ChecksumAlgorithm string

	// ChecksumError provides details about a checksum verification failure.
	// It wraps ErrChecksumMismatch so callers can use errors.Is.
	ChecksumError struct {
		Filename  string
		Algorithm ChecksumAlgorithm
		Expected  string
		Got       string
	}
)

// Sidecar algorithms written next to every staged file.
const (
	MD5    ChecksumAlgorithm = "md5"
	SHA1   ChecksumAlgorithm = "sha1"
	SHA256 ChecksumAlgorithm = "sha256"
	SHA512 ChecksumAlgorithm = "sha512"
)

// ChecksumAlgorithms lists the sidecars produced by WriteChecksums.
func ChecksumAlgorithms() []ChecksumAlgorithm {
	return []ChecksumAlgorithm{MD5, SHA1, SHA256, SHA512}
}

// Error returns a human-readable description of the mismatch.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Algorithm, e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

func (a ChecksumAlgorithm) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New() //nolint:gosec // Repository layout requirement.
	case SHA1:
		return sha1.New() //nolint:gosec // Repository layout requirement.
	case SHA256:
		return sha256.New()
	default:
		return sha512.New()
	}
}

// ComputeChecksums streams the file at path once through every algorithm and
// returns lowercase hex digests keyed by algorithm.
func ComputeChecksums(path string) (map[ChecksumAlgorithm]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // read-only handle

	algos := ChecksumAlgorithms()
	hashes := make([]hash.Hash, len(algos))
	writers := make([]io.Writer, len(algos))
	for i, a := range algos {
		hashes[i] = a.newHash()
		writers[i] = hashes[i]
	}

	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return nil, fmt.Errorf("hashing file %s: %w", path, err)
	}

	sums := make(map[ChecksumAlgorithm]string, len(algos))
	for i, a := range algos {
		sums[a] = hex.EncodeToString(hashes[i].Sum(nil))
	}
	return sums, nil
}

// WriteChecksums writes path.md5, path.sha1, path.sha256 and path.sha512 and
// returns the sidecar paths in that order.
func WriteChecksums(path string) ([]string, error) {
	sums, err := ComputeChecksums(path)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(sums))
	for _, a := range ChecksumAlgorithms() {
		sidecar := path + "." + string(a)
		if err := os.WriteFile(sidecar, []byte(sums[a]), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", sidecar, err)
		}
		out = append(out, sidecar)
	}
	return out, nil
}

// VerifyChecksum compares the sidecar path.<algo> with the file contents.
func VerifyChecksum(path string, algo ChecksumAlgorithm) error {
	want, err := os.ReadFile(path + "." + string(algo))
	if err != nil {
		return fmt.Errorf("reading %s sidecar: %w", algo, err)
	}
	sums, err := ComputeChecksums(path)
	if err != nil {
		return err
	}
	expected := strings.ToLower(strings.TrimSpace(string(want)))
	if sums[algo] != expected {
		return &ChecksumError{Filename: path, Algorithm: algo, Expected: expected, Got: sums[algo]}
	}
	return nil
}
