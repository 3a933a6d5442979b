// SPDX-License-Identifier: MPL-2.0

package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/natrelease/natrelease/internal/artifact"
)

const (
	// DefaultIndexURL is the public repository probed for existing versions.
	DefaultIndexURL = "https://repo1.maven.org/maven2"

	// DefaultTimeout bounds a single probe request.
	DefaultTimeout = 30 * time.Second

	// maxDrainBytes caps how much of a probe response body is discarded
	// before closing so that the connection can be reused.
	maxDrainBytes = 64 << 10
)

// ErrProbeFailed is the sentinel for transport failures while probing the
// index. It never means "already published".
var ErrProbeFailed = errors.New("publish gate probe failed")

type (
	// Gate decides whether a coordinate should be published.
	Gate interface {
		ShouldPublish(ctx context.Context, coord artifact.Coordinate) (Decision, error)
	}

	// Decision is the result of one probe.
	Decision struct {
		Coordinate artifact.Coordinate
		// Exists is true when the index answered with a status below 400.
		Exists bool
		// Status is the HTTP status code returned by the index.
		Status    int
		URL       string
		CheckedAt time.Time
	}

	// ProbeError reports a probe that did not yield a status code.
	ProbeError struct {
		Coordinate artifact.Coordinate
		URL        string
		Err        error
	}

	// HTTPGate probes <base>/<group-path>/<artifactId>/<version>/ over HTTP.
	HTTPGate struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
		timeout    time.Duration
		now        func() time.Time
	}

	// Option configures an HTTPGate.
	Option func(*HTTPGate)
)

// Error implements error.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s at %s: %v", e.Coordinate, e.URL, e.Err)
}

// Unwrap returns ErrProbeFailed and the underlying transport error.
func (e *ProbeError) Unwrap() []error { return []error{ErrProbeFailed, e.Err} }

// ShouldPublish reports whether the coordinate is absent from the index.
func (d Decision) ShouldPublish() bool { return !d.Exists }

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGate) { g.httpClient = c }
}

// WithBaseURL overrides the repository index URL.
func WithBaseURL(base string) Option {
	return func(g *HTTPGate) { g.baseURL = strings.TrimRight(base, "/") }
}

// WithUserAgent sets the User-Agent header sent with every probe.
func WithUserAgent(ua string) Option {
	return func(g *HTTPGate) { g.userAgent = ua }
}

// WithTimeout bounds each probe. Zero disables the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGate) { g.timeout = d }
}

// WithClock sets the time source used for Decision.CheckedAt.
func WithClock(now func() time.Time) Option {
	return func(g *HTTPGate) { g.now = now }
}

// NewHTTPGate creates a gate probing DefaultIndexURL unless overridden.
func NewHTTPGate(opts ...Option) *HTTPGate {
	g := &HTTPGate{
		httpClient: http.DefaultClient,
		baseURL:    DefaultIndexURL,
		userAgent:  "natrelease/dev",
		timeout:    DefaultTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the index URL being probed.
func (g *HTTPGate) BaseURL() string { return g.baseURL }

// ProbeURL returns the directory URL probed for coord.
func (g *HTTPGate) ProbeURL(coord artifact.Coordinate) string {
	return g.baseURL + "/" + coord.Path() + "/"
}

// ShouldPublish probes the index for coord. Any status >= 400 means the
// version is absent and should be published; any other status means it
// exists. Transport failures return a *ProbeError and a zero Decision.
func (g *HTTPGate) ShouldPublish(ctx context.Context, coord artifact.Coordinate) (Decision, error) {
	probeURL := g.ProbeURL(coord)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, http.NoBody)
	if err != nil {
		return Decision{}, &ProbeError{Coordinate: coord, URL: probeURL, Err: err}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Decision{}, &ProbeError{Coordinate: coord, URL: probeURL, Err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes)) //nolint:errcheck // Drain only.
	_ = resp.Body.Close()

	return Decision{
		Coordinate: coord,
		Exists:     resp.StatusCode < http.StatusBadRequest,
		Status:     resp.StatusCode,
		URL:        probeURL,
		CheckedAt:  g.now(),
	}, nil
}
