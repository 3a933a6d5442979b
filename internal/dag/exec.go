// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many tasks Execute runs at once.
const DefaultConcurrency = 4

// Task outcomes.
const (
	Succeeded Outcome = iota + 1
	Skipped
	Failed
	Blocked
	Incomplete
)

type (
	// Outcome is the terminal result of a task.
	Outcome int

	// Task is the unit of work for one node. Returning a non-nil error with
	// Succeeded or a zero Outcome records the task as Failed.
	Task func(ctx context.Context) (Outcome, error)

	// TaskResult records how a task ended.
	TaskResult struct {
		Name    string
		Outcome Outcome
		Err     error
		// BlockedBy names the first predecessor whose outcome prevented this
		// task from running.
		BlockedBy string
		Started   time.Time
		Duration  time.Duration
	}

	// Results maps task names to their results.
	Results map[string]TaskResult

	// MissingTaskError is returned when a graph node has no Task.
	MissingTaskError struct {
		Node string
	}

	// ExecOption configures Execute.
	ExecOption func(*execConfig)

	execConfig struct {
		concurrency int
		onStart     func(name string)
		onFinish    func(TaskResult)
		now         func() time.Time
	}
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Blocked:
		return "blocked"
	case Incomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Satisfies reports whether a predecessor with this outcome lets its
// successors run.
func (o Outcome) Satisfies() bool { return o == Succeeded || o == Skipped }

func (e *MissingTaskError) Error() string {
	return fmt.Sprintf("no task registered for node %q", e.Node)
}

// WithConcurrency bounds the number of tasks running at once. Values below
// one mean one.
func WithConcurrency(n int) ExecOption {
	return func(c *execConfig) { c.concurrency = max(n, 1) }
}

// WithOnStart registers a hook called before a task runs. It is called from
// the worker goroutine and must be safe for concurrent use.
func WithOnStart(fn func(name string)) ExecOption {
	return func(c *execConfig) { c.onStart = fn }
}

// WithOnFinish registers a hook called once per node with its result,
// including nodes that were blocked and never ran.
func WithOnFinish(fn func(TaskResult)) ExecOption {
	return func(c *execConfig) { c.onFinish = fn }
}

// WithNow sets the time source for Started and Duration.
func WithNow(now func() time.Time) ExecOption {
	return func(c *execConfig) { c.now = now }
}

// Execute runs every node of g with the matching task. A task starts once
// all predecessors have finished; when any predecessor did not succeed or
// skip, the task is recorded as Blocked without running. A failing task
// never cancels unrelated tasks. Cancelling ctx stops launching new tasks;
// those are recorded as Failed with the context error.
func (g *Graph) Execute(ctx context.Context, tasks map[string]Task, opts ...ExecOption) (Results, error) {
	cfg := execConfig{concurrency: DefaultConcurrency, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := g.TopologicalSort(); err != nil {
		return nil, err
	}
	for _, n := range g.nodes {
		if tasks[n] == nil {
			return nil, &MissingTaskError{Node: n}
		}
	}

	inDegree := make(map[string]int, len(g.nodes))
	var ready []string
	for _, n := range g.nodes {
		inDegree[n] = len(g.pred[n])
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	results := make(Results, len(g.nodes))
	finished := make(chan TaskResult, len(g.nodes))

	finish := func(r TaskResult) {
		results[r.Name] = r
		if cfg.onFinish != nil {
			cfg.onFinish(r)
		}
		for _, next := range g.succ[r.Name] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	var eg errgroup.Group
	eg.SetLimit(cfg.concurrency)
	running := 0

	for len(results) < len(g.nodes) {
		for len(ready) > 0 {
			name := ready[0]
			ready = ready[1:]

			if blocker := g.firstUnsatisfied(name, results); blocker != "" {
				finish(TaskResult{
					Name:      name,
					Outcome:   Blocked,
					BlockedBy: blocker,
					Err:       fmt.Errorf("%s did not run: %s %s", name, blocker, results[blocker].Outcome),
				})
				continue
			}
			if err := ctx.Err(); err != nil {
				finish(TaskResult{Name: name, Outcome: Failed, Err: err})
				continue
			}

			running++
			task := tasks[name]
			eg.Go(func() error {
				finished <- runTask(ctx, &cfg, name, task)
				return nil
			})
		}

		if running == 0 {
			break
		}
		r := <-finished
		running--
		finish(r)
	}

	_ = eg.Wait() //nolint:errcheck // Workers always return nil.
	return results, nil
}

func runTask(ctx context.Context, cfg *execConfig, name string, task Task) TaskResult {
	if cfg.onStart != nil {
		cfg.onStart(name)
	}
	start := cfg.now()
	outcome, err := task(ctx)
	r := TaskResult{Name: name, Outcome: outcome, Err: err, Started: start, Duration: cfg.now().Sub(start)}
	if err != nil && (outcome == 0 || outcome == Succeeded) {
		r.Outcome = Failed
	}
	if r.Outcome == 0 {
		r.Outcome = Succeeded
	}
	return r
}

func (g *Graph) firstUnsatisfied(name string, results Results) string {
	for _, p := range g.pred[name] {
		if !results[p].Outcome.Satisfies() {
			return p
		}
	}
	return ""
}

// Order returns the names in results following g's topological order,
// skipping nodes without a result.
func (g *Graph) Order(results Results) []string {
	order, err := g.TopologicalSort()
	if err != nil {
		order = g.Nodes()
	}
	out := make([]string, 0, len(results))
	for _, n := range order {
		if _, ok := results[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
