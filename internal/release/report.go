// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"time"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/pkg/platform"
)

type (
	// Report summarises one Run.
	Report struct {
		Target   Target
		Triplet  string
		Platform platform.Tag
		Version  string
		// Modules lists every module with at least one task in the plan, in
		// configuration order.
		Modules []ModuleReport
		// Tasks lists every planned task in topological order.
		Tasks []TaskReport
	}

	// ModuleReport is the final state of one module.
	ModuleReport struct {
		Name       string
		Coordinate artifact.Coordinate
		State      State
		// Outcome is the most severe outcome among the module's tasks.
		Outcome          dag.Outcome
		AlreadyPublished bool
		LocalOnly        bool
		RepositoryID     string
		// Staged lists staged files relative to the staging root.
		Staged   []string
		Uploaded int
		Err      error
	}

	// TaskReport is the result of one task.
	TaskReport struct {
		Name      string
		Kind      Target
		Module    string
		Outcome   dag.Outcome
		BlockedBy string
		Duration  time.Duration
		Err       error
	}
)

// Err joins the errors of failed and incomplete tasks. Blocked tasks are
// left out since their cause is already included.
func (r *Report) Err() error {
	var errs []error
	for _, t := range r.Tasks {
		if (t.Outcome == dag.Failed || t.Outcome == dag.Incomplete) && t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errors.Join(errs...)
}

// Incomplete reports whether any task timed out waiting on the remote.
func (r *Report) Incomplete() bool {
	for _, t := range r.Tasks {
		if t.Outcome == dag.Incomplete {
			return true
		}
	}
	return false
}

// Failed reports whether any task failed or was blocked.
func (r *Report) Failed() bool {
	for _, t := range r.Tasks {
		if t.Outcome == dag.Failed || t.Outcome == dag.Blocked {
			return true
		}
	}
	return false
}

// Code classifies the first failure of the run.
func (r *Report) Code() Code {
	return Classify(r.Err())
}

// Module returns the report of the named module.
func (r *Report) Module(name string) (ModuleReport, bool) {
	for _, m := range r.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleReport{}, false
}

// Task returns the report of the named task.
func (r *Report) Task(name string) (TaskReport, bool) {
	for _, t := range r.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskReport{}, false
}

// severity orders outcomes for module summaries.
func severity(o dag.Outcome) int {
	switch o {
	case dag.Failed:
		return 4
	case dag.Incomplete:
		return 3
	case dag.Blocked:
		return 2
	case dag.Succeeded:
		return 1
	default:
		return 0
	}
}

func (r *run) started(name string) {
	kind, module := SplitTaskName(name)
	if m, ok := r.modules[module]; ok {
		r.o.logger.Info("task started", "task", name, "module", module, "state", m.currentState())
		return
	}
	r.o.logger.Info("task started", "task", kind)
}

func (r *run) finished(res dag.TaskResult) {
	_, module := SplitTaskName(res.Name)
	kv := []any{"task", res.Name}
	if m, ok := r.modules[module]; ok {
		kv = append(kv, "module", module, "state", m.currentState())
	}
	kv = append(kv, "outcome", res.Outcome, "duration", res.Duration)

	switch res.Outcome {
	case dag.Failed:
		r.o.logger.Error("task failed", append(kv, "code", Classify(res.Err), "err", res.Err)...)
	case dag.Incomplete:
		r.o.logger.Warn("task incomplete", append(kv, "err", res.Err)...)
	case dag.Blocked:
		r.o.logger.Warn("task blocked", append(kv, "blocked_by", res.BlockedBy)...)
	default:
		r.o.logger.Info("task finished", kv...)
	}
}

func (r *run) report(target Target, g *dag.Graph, results dag.Results) *Report {
	rep := &Report{
		Target:   target,
		Triplet:  r.o.triplet,
		Platform: r.o.tag,
		Version:  r.o.version,
	}

	perModule := make(map[string][]TaskReport)
	for _, name := range g.Order(results) {
		res := results[name]
		kind, module := SplitTaskName(name)
		t := TaskReport{
			Name:      name,
			Kind:      kind,
			Module:    module,
			Outcome:   res.Outcome,
			BlockedBy: res.BlockedBy,
			Duration:  res.Duration,
			Err:       res.Err,
		}
		rep.Tasks = append(rep.Tasks, t)
		if module != "" {
			perModule[module] = append(perModule[module], t)
		}
	}

	for _, cfg := range r.o.cfg.Modules {
		tasks, ok := perModule[cfg.Name]
		if !ok {
			continue
		}
		m := r.modules[cfg.Name]

		m.mu.Lock()
		mr := ModuleReport{
			Name:             cfg.Name,
			Coordinate:       m.desc.Coordinate(),
			State:            m.state,
			AlreadyPublished: m.alreadyPublished,
			LocalOnly:        m.localOnly,
			RepositoryID:     m.repositoryID,
			Uploaded:         m.uploaded,
		}
		m.mu.Unlock()
		mr.Staged = m.stagedFiles(r.o.cfg.Staging.Dir)

		for _, t := range tasks {
			if severity(t.Outcome) > severity(mr.Outcome) || mr.Outcome == 0 {
				mr.Outcome = t.Outcome
				if t.Outcome != dag.Succeeded && t.Outcome != dag.Skipped {
					mr.Err = t.Err
				}
			}
		}
		rep.Modules = append(rep.Modules, mr)
	}
	return rep
}
