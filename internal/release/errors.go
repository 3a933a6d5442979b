// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"fmt"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/internal/gate"
	"github.com/natrelease/natrelease/internal/nexus"
	"github.com/natrelease/natrelease/internal/signing"
	"github.com/natrelease/natrelease/internal/toolchain"
	"github.com/natrelease/natrelease/pkg/platform"
)

// Failure codes reported by Classify.
const (
	CodeUnsupportedPlatform Code = "unsupported-platform"
	CodeMissingArtifacts    Code = "missing-artifacts"
	CodeProbeFailure        Code = "probe-failure"
	CodeSigningFailure      Code = "signing-failure"
	CodeUploadFailure       Code = "upload-failure"
	CodeReleaseTimeout      Code = "release-timeout"
	CodeValidationFailure   Code = "validation-failure"
	CodeBuildFailure        Code = "build-failure"
	CodeDependencyCycle     Code = "dependency-cycle"
	CodeUnknown             Code = "unknown"
)

// Staging service requests named by UploadError.
const (
	RequestStart   = "start"
	RequestUpload  = "upload"
	RequestClose   = "close"
	RequestPromote = "promote"
)

// Release phases polled after a request.
const (
	PhaseClose   Phase = "close"
	PhaseRelease Phase = "release"
)

var (
	// ErrUploadFailed is the sentinel wrapped by UploadError.
	ErrUploadFailed = errors.New("upload failed")
	// ErrReleaseTimeout is the sentinel wrapped by ReleaseTimeoutError.
	ErrReleaseTimeout = errors.New("release did not settle")
	// ErrValidationFailed is the sentinel wrapped by ValidationError.
	ErrValidationFailed = errors.New("staging validation failed")
)

type (
	// Code is a stable machine-readable failure kind.
	Code string

	// Phase names the remote transition being awaited.
	Phase string

	// StepError attributes a failure to a module and task step.
	StepError struct {
		Module string
		Step   string
		Err    error
	}

	// UploadError is a rejected request to the staging service. Request
	// names the call (start, upload, close, promote) and Path its subject.
	// Status and Body are the remote response; Status is zero for transport
	// failures.
	UploadError struct {
		Request string
		Path    string
		Status  int
		Body    string
		Err     error
	}

	// ReleaseTimeoutError means the repository was still transitioning after
	// every allowed poll. The final remote state is unknown.
	ReleaseTimeoutError struct {
		Module       string
		RepositoryID string
		Phase        Phase
		Attempts     int
	}

	// ValidationError means the service refused to close the repository.
	ValidationError struct {
		RepositoryID  string
		Notifications int
	}
)

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Module, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *UploadError) Error() string {
	request := e.Request
	if request == "" {
		request = RequestUpload
	}
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s %s failed: HTTP %d: %s", request, e.Path, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s %s failed: HTTP %d", request, e.Path, e.Status)
	default:
		return fmt.Sprintf("%s %s failed: %v", request, e.Path, e.Err)
	}
}

// Unwrap returns ErrUploadFailed and the underlying error.
func (e *UploadError) Unwrap() []error { return []error{ErrUploadFailed, e.Err} }

func (e *ReleaseTimeoutError) Error() string {
	return fmt.Sprintf("repository %s still transitioning after %d %s polls", e.RepositoryID, e.Attempts, e.Phase)
}

func (e *ReleaseTimeoutError) Unwrap() error { return ErrReleaseTimeout }

func (e *ValidationError) Error() string {
	return fmt.Sprintf("repository %s failed to close with %d rule failure(s)", e.RepositoryID, e.Notifications)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// newUploadError captures the remote status and body when err carries them.
func newUploadError(request, path string, err error) *UploadError {
	ue := &UploadError{Request: request, Path: path, Err: err}
	var re *nexus.ResponseError
	if errors.As(err, &re) {
		ue.Status = re.Status
		ue.Body = re.Body
	}
	return ue
}

// Classify maps an error to its failure code. nil yields "".
func Classify(err error) Code {
	if err == nil {
		return ""
	}

	var cycle *dag.CycleError
	var response *nexus.ResponseError
	switch {
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return CodeUnsupportedPlatform
	case errors.Is(err, ErrReleaseTimeout):
		return CodeReleaseTimeout
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailure
	case errors.Is(err, artifact.ErrMissingArtifacts):
		return CodeMissingArtifacts
	case errors.Is(err, gate.ErrProbeFailed):
		return CodeProbeFailure
	case errors.Is(err, signing.ErrSigningFailed):
		return CodeSigningFailure
	case errors.Is(err, ErrUploadFailed), errors.As(err, &response):
		return CodeUploadFailure
	case errors.Is(err, toolchain.ErrScriptFailed):
		return CodeBuildFailure
	case errors.As(err, &cycle):
		return CodeDependencyCycle
	default:
		return CodeUnknown
	}
}
