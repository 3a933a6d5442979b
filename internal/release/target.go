// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/dag"
)

// Task kinds. Clean and Build are shared; the others exist once per module.
const (
	TargetClean   Target = "clean"
	TargetBuild   Target = "build"
	TargetCollect Target = "collect"
	TargetStage   Target = "stage"
	TargetPublish Target = "publish"
	TargetRelease Target = "release"
)

// ErrUnknownTarget is returned by ParseTarget.
var ErrUnknownTarget = errors.New("unknown target")

// Target is a task kind that can be requested from the command line. Running
// a target runs every task of that kind plus everything they depend on.
type Target string

// Targets returns the targets in pipeline order.
func Targets() []Target {
	return []Target{TargetClean, TargetBuild, TargetCollect, TargetStage, TargetPublish, TargetRelease}
}

// ParseTarget accepts a target name, case-insensitively.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Targets() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownTarget, s)
}

func (t Target) shared() bool {
	return t == TargetClean || t == TargetBuild
}

// TaskName names the task of kind for module, e.g. "publish:mylib-api".
// Shared kinds ignore module.
func TaskName(kind Target, module string) string {
	if kind.shared() {
		return string(kind)
	}
	return string(kind) + ":" + module
}

// SplitTaskName is the inverse of TaskName. Shared tasks have no module.
func SplitTaskName(name string) (Target, string) {
	kind, module, _ := strings.Cut(name, ":")
	return Target(kind), module
}

// BuildGraph returns the full task graph for cfg:
//
//	clean -> build -> collect:<m> -> stage:<m> -> publish:<m> -> release:<m>
//
// collect exists only for platform modules; other modules stage right after
// build. Each depends_on entry adds publish:<dep> -> publish:<m> and
// release:<dep> -> release:<m>, so a dependent is never promoted ahead of
// its dependency.
func BuildGraph(cfg *config.Config) *dag.Graph {
	g := dag.New()
	g.AddEdge(string(TargetClean), string(TargetBuild))

	for _, m := range cfg.Modules {
		stage := TaskName(TargetStage, m.Name)
		if m.Platform {
			collect := TaskName(TargetCollect, m.Name)
			g.AddEdge(string(TargetBuild), collect)
			g.AddEdge(collect, stage)
		} else {
			g.AddEdge(string(TargetBuild), stage)
		}
		g.AddEdge(stage, TaskName(TargetPublish, m.Name))
		g.AddEdge(TaskName(TargetPublish, m.Name), TaskName(TargetRelease, m.Name))
	}

	for _, m := range cfg.Modules {
		for _, dep := range m.DependsOn {
			g.AddEdge(TaskName(TargetPublish, dep), TaskName(TargetPublish, m.Name))
			g.AddEdge(TaskName(TargetRelease, dep), TaskName(TargetRelease, m.Name))
		}
	}
	return g
}

// PlanGraph selects the closure of target from the full graph. It fails
// with a *dag.CycleError when module dependencies form a cycle.
func PlanGraph(cfg *config.Config, target Target) (*dag.Graph, error) {
	full := BuildGraph(cfg)
	if _, err := full.TopologicalSort(); err != nil {
		return nil, err
	}

	var roots []string
	for _, n := range full.Nodes() {
		if kind, _ := SplitTaskName(n); kind == target {
			roots = append(roots, n)
		}
	}
	if len(roots) == 0 {
		return dag.New(), nil
	}

	closure, err := full.Ancestors(roots...)
	if err != nil {
		return nil, err
	}
	return full.Subgraph(closure), nil
}
