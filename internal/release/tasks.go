// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/internal/signing"
	"github.com/natrelease/natrelease/internal/toolchain"
)

type (
	// run holds the state of one Run invocation.
	run struct {
		o        *Orchestrator
		modules  map[string]*moduleRun
		unsigned sync.Once
	}

	// moduleRun tracks one module through a run. Tasks of the same module
	// never overlap; the mutex guards reads from hooks and the report.
	moduleRun struct {
		mu sync.Mutex

		cfg  config.ModuleConfig
		desc artifact.Descriptor
		dir  string

		state            State
		staged           []string
		repositoryID     string
		uploaded         int
		alreadyPublished bool
		localOnly        bool
	}
)

func (o *Orchestrator) newRun() *run {
	r := &run{o: o, modules: make(map[string]*moduleRun, len(o.cfg.Modules))}
	for _, m := range o.cfg.Modules {
		r.modules[m.Name] = &moduleRun{
			cfg:  m,
			desc: o.Descriptor(m),
			dir:  o.StagingDir(m),
		}
	}
	return r
}

func (m *moduleRun) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *moduleRun) advance(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := Transition(m.state, to); err != nil {
		return err
	}
	m.state = to
	return nil
}

func (m *moduleRun) fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.IsTerminal() {
		m.state = Failed
	}
}

func (r *run) task(name string) dag.Task {
	kind, module := SplitTaskName(name)
	m := r.modules[module]
	switch kind {
	case TargetClean:
		return r.clean
	case TargetBuild:
		return r.build
	case TargetCollect:
		return func(ctx context.Context) (dag.Outcome, error) { return r.collect(ctx, m) }
	case TargetStage:
		return func(ctx context.Context) (dag.Outcome, error) { return r.stage(ctx, m) }
	case TargetPublish:
		return func(ctx context.Context) (dag.Outcome, error) { return r.publish(ctx, m) }
	case TargetRelease:
		return func(ctx context.Context) (dag.Outcome, error) { return r.release(ctx, m) }
	default:
		return nil
	}
}

func (r *run) failStep(m *moduleRun, step Target, err error) (dag.Outcome, error) {
	m.fail()
	return dag.Failed, &StepError{Module: m.cfg.Name, Step: string(step), Err: err}
}

func (r *run) clean(ctx context.Context) (dag.Outcome, error) {
	for _, m := range r.o.cfg.Modules {
		if err := ctx.Err(); err != nil {
			return dag.Failed, err
		}
		if !m.Platform {
			continue
		}
		if err := artifact.CleanNatives(m.ResourcesDir); err != nil {
			return dag.Failed, fmt.Errorf("cleaning natives of %s: %w", m.Name, err)
		}
	}
	if err := os.RemoveAll(r.o.cfg.Staging.Dir); err != nil {
		return dag.Failed, fmt.Errorf("removing staging directory: %w", err)
	}
	return dag.Succeeded, nil
}

func (r *run) build(ctx context.Context) (dag.Outcome, error) {
	script := r.o.cfg.Build.Script
	if script == "" {
		r.o.logger.Debug("no build script configured", "task", TargetBuild)
		return dag.Succeeded, nil
	}

	err := toolchain.RunScript(ctx, toolchain.ScriptOptions{
		Script: script,
		Dir:    r.o.cfg.Build.Dir,
		Env: []string{
			"TARGET=" + r.o.triplet,
			"PLATFORM=" + string(r.o.tag),
			"VERSION=" + r.o.version,
		},
		Stdout: r.o.stdout,
		Stderr: r.o.stderr,
	})
	if err != nil {
		return dag.Failed, fmt.Errorf("%s: %w", TargetBuild, err)
	}
	return dag.Succeeded, nil
}

func (r *run) collect(_ context.Context, m *moduleRun) (dag.Outcome, error) {
	src := artifact.CompilerOutputDir(r.o.cfg.Natives.SourceDir, r.o.triplet)
	set, err := artifact.Collect(r.o.tag, src, m.cfg.ResourcesDir)
	if err != nil {
		return r.failStep(m, TargetCollect, err)
	}
	r.o.logger.Debug("natives collected", "module", m.cfg.Name, "files", set.Files, "dir", set.Root)
	return dag.Succeeded, nil
}

func (r *run) stage(ctx context.Context, m *moduleRun) (dag.Outcome, error) {
	if err := m.desc.Validate(); err != nil {
		return r.failStep(m, TargetStage, err)
	}
	if r.o.signerErr != nil {
		return r.failStep(m, TargetStage, r.o.signerErr)
	}

	if err := os.RemoveAll(m.dir); err != nil {
		return r.failStep(m, TargetStage, err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return r.failStep(m, TargetStage, err)
	}

	primary := make([]string, 0, len(m.cfg.Companions)+2)

	jar, err := artifact.Package(artifact.PackageOptions{
		SourceDir:      m.cfg.ResourcesDir,
		Platform:       m.desc.Platform,
		RequireNatives: m.cfg.Platform,
		Output:         filepath.Join(m.dir, m.desc.FileName("", "jar")),
		Module:         m.cfg.Name,
	})
	if err != nil {
		return r.failStep(m, TargetStage, err)
	}
	primary = append(primary, jar.Path)

	for _, classifier := range m.cfg.Classifiers() {
		res, err := artifact.Package(artifact.PackageOptions{
			SourceDir: m.cfg.Companions[classifier],
			Output:    filepath.Join(m.dir, m.desc.FileName(classifier, "jar")),
			Module:    m.cfg.Name,
		})
		if err != nil {
			return r.failStep(m, TargetStage, err)
		}
		primary = append(primary, res.Path)
	}

	pom, err := artifact.WritePOM(m.dir, m.desc, r.o.cfg.Project.POMInfo(), r.dependencies(m))
	if err != nil {
		return r.failStep(m, TargetStage, err)
	}
	primary = append(primary, pom)

	if r.o.signer == nil {
		r.o.warnUnsigned(&r.unsigned)
	}
	for _, p := range primary {
		if err := ctx.Err(); err != nil {
			return r.failStep(m, TargetStage, err)
		}
		if _, err := artifact.WriteChecksums(p); err != nil {
			return r.failStep(m, TargetStage, err)
		}
		if r.o.signer != nil {
			if _, err := signing.SignFile(r.o.signer, p); err != nil {
				return r.failStep(m, TargetStage, err)
			}
		}
	}

	staged, err := listStaged(m.dir)
	if err != nil {
		return r.failStep(m, TargetStage, err)
	}

	m.mu.Lock()
	m.staged = staged
	m.mu.Unlock()
	if err := m.advance(Staged); err != nil {
		return r.failStep(m, TargetStage, err)
	}
	return dag.Succeeded, nil
}

func (r *run) dependencies(m *moduleRun) []artifact.Coordinate {
	deps := make([]artifact.Coordinate, 0, len(m.cfg.DependsOn))
	for _, name := range m.cfg.DependsOn {
		if dep, ok := r.modules[name]; ok {
			deps = append(deps, dep.desc.Coordinate())
		}
	}
	return deps
}

func listStaged(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (r *run) publish(ctx context.Context, m *moduleRun) (dag.Outcome, error) {
	if r.o.LocalOnly() {
		m.mu.Lock()
		m.localOnly = true
		m.mu.Unlock()
		r.o.logger.Info("local-only mode, skipping upload",
			"module", m.cfg.Name,
			"missing", r.o.cfg.Remote.MissingCredentials(),
		)
		return dag.Skipped, nil
	}

	coord := m.desc.Coordinate()
	decision, err := r.o.gate.ShouldPublish(ctx, coord)
	if err != nil {
		return r.failStep(m, TargetPublish, err)
	}
	if !decision.ShouldPublish() {
		m.mu.Lock()
		m.alreadyPublished = true
		m.mu.Unlock()
		r.o.logger.Info("already published, skipping upload", "module", m.cfg.Name, "coordinate", coord, "status", decision.Status)
		return dag.Skipped, nil
	}

	repoID, err := r.o.staging.Start(ctx, r.o.cfg.Remote.ProfileID, coord.String())
	if err != nil {
		return r.failStep(m, TargetPublish, newUploadError(RequestStart, coord.Path(), err))
	}
	m.mu.Lock()
	m.repositoryID = repoID
	files := slices.Clone(m.staged)
	m.mu.Unlock()
	r.o.logger.Info("staging repository opened", "module", m.cfg.Name, "repository", repoID)

	for _, name := range files {
		rel := coord.Path() + "/" + name
		if err := r.upload(ctx, repoID, rel, filepath.Join(m.dir, name)); err != nil {
			return r.failStep(m, TargetPublish, err)
		}
		m.mu.Lock()
		m.uploaded++
		m.mu.Unlock()
	}

	if err := m.advance(Uploaded); err != nil {
		return r.failStep(m, TargetPublish, err)
	}
	return dag.Succeeded, nil
}

// upload sends one staged file. Files with a checksum sidecar are verified
// against it first.
func (r *run) upload(ctx context.Context, repoID, rel, path string) error {
	if _, err := os.Stat(path + "." + string(artifact.SHA256)); err == nil {
		if err := artifact.VerifyChecksum(path, artifact.SHA256); err != nil {
			return newUploadError(RequestUpload, rel, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	// The HTTP client closes the body once sent.
	defer func() { _ = f.Close() }() // read-only handle

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := r.o.staging.Upload(ctx, repoID, rel, f, info.Size()); err != nil {
		return newUploadError(RequestUpload, rel, err)
	}
	r.o.logger.Debug("uploaded", "repository", repoID, "path", rel, "bytes", info.Size())
	return nil
}

func (r *run) release(ctx context.Context, m *moduleRun) (dag.Outcome, error) {
	if m.currentState() != Uploaded {
		r.o.logger.Info("nothing uploaded, skipping release", "module", m.cfg.Name, "state", m.currentState())
		return dag.Skipped, nil
	}
	if err := m.advance(Validating); err != nil {
		return r.failStep(m, TargetRelease, err)
	}

	m.mu.Lock()
	repoID := m.repositoryID
	m.mu.Unlock()
	desc := m.desc.Coordinate().String()
	p := r.o.poller()

	if err := r.o.staging.Close(ctx, repoID, desc); err != nil {
		return r.failStep(m, TargetRelease, newUploadError(RequestClose, repoID, err))
	}
	if err := p.wait(ctx, m.cfg.Name, repoID, PhaseClose, closed); err != nil {
		return r.settleFailure(m, err)
	}

	if err := r.o.staging.Promote(ctx, repoID, desc); err != nil {
		return r.failStep(m, TargetRelease, newUploadError(RequestPromote, repoID, err))
	}
	if err := p.wait(ctx, m.cfg.Name, repoID, PhaseRelease, released); err != nil {
		return r.settleFailure(m, err)
	}

	if err := m.advance(Released); err != nil {
		return r.failStep(m, TargetRelease, err)
	}
	return dag.Succeeded, nil
}

// settleFailure keeps a timed-out module in Validating, since its remote
// state is unknown, and fails it otherwise.
func (r *run) settleFailure(m *moduleRun, err error) (dag.Outcome, error) {
	if errors.Is(err, ErrReleaseTimeout) {
		return dag.Incomplete, &StepError{Module: m.cfg.Name, Step: string(TargetRelease), Err: err}
	}
	return r.failStep(m, TargetRelease, err)
}

// stagedFiles returns the staged file paths relative to the staging root.
func (m *moduleRun) stagedFiles(root string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.staged))
	for _, name := range m.staged {
		rel, err := filepath.Rel(root, filepath.Join(m.dir, name))
		if err != nil {
			rel = name
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
