// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/internal/gate"
	"github.com/natrelease/natrelease/internal/nexus"
	"github.com/natrelease/natrelease/internal/signing"
	"github.com/natrelease/natrelease/internal/toolchain"
	"github.com/natrelease/natrelease/pkg/platform"
)

// UserAgent is sent to the index and the staging service.
const UserAgent = "natrelease"

type (
	// Staging is the subset of the staging service used by a run.
	// *nexus.Client implements it.
	Staging interface {
		Start(ctx context.Context, profileID, description string) (string, error)
		Upload(ctx context.Context, repositoryID, relPath string, body io.Reader, size int64) error
		Close(ctx context.Context, repositoryID, description string) error
		Promote(ctx context.Context, repositoryID, description string) error
		Repository(ctx context.Context, repositoryID string) (nexus.Repository, error)
	}

	// Orchestrator plans and runs release task graphs for one configuration
	// and one resolved platform. It holds no per-run state, so Run may be
	// called repeatedly.
	Orchestrator struct {
		cfg     *config.Config
		triplet string
		tag     platform.Tag
		version string

		logger      *log.Logger
		gate        gate.Gate
		staging     Staging
		signer      signing.Signer
		signerErr   error
		clock       Clock
		stdout      io.Writer
		stderr      io.Writer
		concurrency int
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// CheckResult is the gate decision for one module.
	CheckResult struct {
		Module   string
		Decision gate.Decision
		Err      error
	}
)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithGate replaces the HTTP publish gate built from the index settings.
func WithGate(g gate.Gate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// WithStaging replaces the staging client built from the remote settings.
func WithStaging(s Staging) Option {
	return func(o *Orchestrator) { o.staging = s }
}

// WithSigner replaces the signer built from the signing settings.
func WithSigner(s signing.Signer) Option {
	return func(o *Orchestrator) { o.signer = s }
}

// WithClock sets the time source used for polling and task timings.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithOutput sets where the build script writes.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithConcurrency overrides staging.concurrency.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// New resolves the platform and version for cfg. It fails before any task
// runs when the target triplet is unsupported.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	triplet := cfg.Target
	if triplet == "" {
		triplet = platform.DefaultTriplet
	}
	tag, err := platform.Resolve(triplet)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:         cfg,
		triplet:     triplet,
		tag:         tag,
		clock:       systemClock{},
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		concurrency: cfg.Staging.Concurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	if o.version, err = resolveVersion(cfg.Project); err != nil {
		return nil, err
	}

	if o.gate == nil {
		o.gate = gate.NewHTTPGate(
			gate.WithBaseURL(cfg.Index.URL),
			gate.WithTimeout(cfg.Index.Timeout),
			gate.WithUserAgent(UserAgent),
			gate.WithClock(o.clock.Now),
		)
	}
	if o.staging == nil {
		o.staging = nexus.NewClient(
			nexus.WithHTTPClient(nexus.NewHTTPClient(cfg.Remote.ConnectTimeout, cfg.Remote.ClientTimeout)),
			nexus.WithBaseURL(cfg.Remote.URL),
			nexus.WithCredentials(cfg.Remote.Username, cfg.Remote.Password),
			nexus.WithUserAgent(UserAgent),
		)
	}
	if o.signer == nil && cfg.Signing.HasKey() {
		o.signer, o.signerErr = loadSigner(cfg.Signing)
	}

	return o, nil
}

func resolveVersion(p config.ProjectConfig) (string, error) {
	version := p.Version
	if version == "" {
		manifest, err := toolchain.ReadCargoManifest(p.CargoManifest)
		if err != nil {
			return "", fmt.Errorf("resolving release version: %w", err)
		}
		version = manifest.Package.Version
	}
	if err := artifact.ValidateVersion(version); err != nil {
		return "", err
	}
	return version, nil
}

func loadSigner(s config.SigningConfig) (signing.Signer, error) {
	key, err := s.ArmoredKey()
	if err != nil {
		return nil, &signing.SigningError{Subject: "key", Err: err}
	}
	signer, err := signing.NewPGPSigner(key, s.Password)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// Platform returns the resolved platform tag.
func (o *Orchestrator) Platform() platform.Tag { return o.tag }

// Triplet returns the compiler target triplet.
func (o *Orchestrator) Triplet() string { return o.triplet }

// Version returns the release version.
func (o *Orchestrator) Version() string { return o.version }

// Signed reports whether staged files will carry signatures.
func (o *Orchestrator) Signed() bool { return o.signer != nil }

// LocalOnly reports whether uploads are disabled for lack of credentials.
func (o *Orchestrator) LocalOnly() bool { return !o.cfg.Remote.HasCredentials() }

// Descriptor returns the artifact descriptor of module m for this run.
func (o *Orchestrator) Descriptor(m config.ModuleConfig) artifact.Descriptor {
	d := artifact.Descriptor{
		Module:     m.Name,
		ArtifactID: m.ArtifactID,
		Version:    o.version,
		Group:      o.cfg.Project.Group,
	}
	if m.Platform {
		d.Platform = o.tag
	}
	return d
}

// StagingDir returns the local staging directory of module m.
func (o *Orchestrator) StagingDir(m config.ModuleConfig) string {
	return filepath.Join(o.cfg.Staging.Dir, filepath.FromSlash(o.Descriptor(m).Coordinate().Path()))
}

// Plan returns the task graph run for target.
func (o *Orchestrator) Plan(target Target) (*dag.Graph, error) {
	return PlanGraph(o.cfg, target)
}

// Run executes target and reports the outcome of every task and module. The
// returned error covers planning only; task failures are in the Report.
func (o *Orchestrator) Run(ctx context.Context, target Target) (*Report, error) {
	g, err := o.Plan(target)
	if err != nil {
		return nil, err
	}

	r := o.newRun()
	tasks := make(map[string]dag.Task, g.Len())
	for _, name := range g.Nodes() {
		tasks[name] = r.task(name)
	}

	o.logger.Info("release started",
		"target", target,
		"platform", o.tag,
		"version", o.version,
		"tasks", g.Len(),
		"modules", o.cfg.ModuleNames(),
		"local_only", o.LocalOnly(),
	)

	results, err := g.Execute(ctx, tasks,
		dag.WithConcurrency(o.concurrency),
		dag.WithNow(o.clock.Now),
		dag.WithOnStart(r.started),
		dag.WithOnFinish(r.finished),
	)
	if err != nil {
		return nil, err
	}

	report := r.report(target, g, results)
	o.logger.Info("release finished", "target", target, "failed", report.Failed(), "incomplete", report.Incomplete())
	return report, nil
}

// Check asks the gate about every module without changing anything.
func (o *Orchestrator) Check(ctx context.Context) []CheckResult {
	out := make([]CheckResult, len(o.cfg.Modules))

	var eg errgroup.Group
	eg.SetLimit(max(o.concurrency, 1))
	for i, m := range o.cfg.Modules {
		eg.Go(func() error {
			d, err := o.gate.ShouldPublish(ctx, o.Descriptor(m).Coordinate())
			out[i] = CheckResult{Module: m.Name, Decision: d, Err: err}
			return nil
		})
	}
	_ = eg.Wait() //nolint:errcheck // Workers always return nil.
	return out
}

func (o *Orchestrator) poller() *poller {
	return &poller{
		staging:  o.staging,
		clock:    o.clock,
		logger:   o.logger,
		interval: o.cfg.Remote.PollInterval,
		attempts: o.cfg.Remote.MaxAttempts,
	}
}

// warnUnsigned logs the missing-key warning at most once per sync.Once.
func (o *Orchestrator) warnUnsigned(once *sync.Once) {
	once.Do(func() {
		o.logger.Warn("no signing key configured, staging unsigned artifacts",
			"env", config.EnvSigningKey)
	})
}
