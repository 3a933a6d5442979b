// SPDX-License-Identifier: MPL-2.0

package release

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/gate"
	"github.com/natrelease/natrelease/internal/nexus"
	"github.com/natrelease/natrelease/internal/nexus/nexustest"
	"github.com/natrelease/natrelease/internal/testutil"
)

const (
	testTriplet = "x86_64-unknown-linux-gnu"
	testVersion = "1.2.0"
)

type (
	// fakeIndex serves the public repository layout: known coordinates
	// answer 200, everything else 404.
	fakeIndex struct {
		*httptest.Server

		mu        sync.Mutex
		published map[string]bool
		probes    []string
	}

	// stubSigner writes a fixed armored block.
	stubSigner struct{}

	// gateFunc adapts a function to gate.Gate.
	gateFunc func(ctx context.Context, coord artifact.Coordinate) (gate.Decision, error)

	// syncBuffer is a bytes.Buffer safe for concurrent log writes.
	syncBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	// fixture bundles a configured workspace with its fakes.
	fixture struct {
		root    string
		cfg     *config.Config
		index   *fakeIndex
		staging *nexustest.Server
		clock   *testutil.StepClock
		logs    *syncBuffer
	}
)

func newFakeIndex(t *testing.T) *fakeIndex {
	t.Helper()
	idx := &fakeIndex{published: make(map[string]bool)}
	idx.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		p := strings.Trim(r.URL.Path, "/")
		idx.probes = append(idx.probes, p)
		if idx.published[p] {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(idx.Close)
	return idx
}

func (i *fakeIndex) publish(coords ...artifact.Coordinate) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, c := range coords {
		i.published[c.Path()] = true
	}
}

func (i *fakeIndex) probeCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.probes)
}

func (stubSigner) Sign(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	_, err := io.WriteString(w, "-----BEGIN PGP SIGNATURE-----\n\nstub\n-----END PGP SIGNATURE-----\n")
	return err
}

func (f gateFunc) ShouldPublish(ctx context.Context, coord artifact.Coordinate) (gate.Decision, error) {
	return f(ctx, coord)
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newFixture writes an api module and the compiler output of a native
// module, and wires fake index and staging services with credentials set.
func newFixture(t *testing.T, opts ...nexustest.Option) *fixture {
	t.Helper()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"api/resources/META-INF/mylib.properties":                "version=" + testVersion + "\n",
		"api/javadoc/index.html":                                 "<html></html>\n",
		"target/" + testTriplet + "/release/libmylib.so":         "ELF linux",
		"target/" + testTriplet + "/release/build-script-marker": "ignored",
		"native/resources/natives/win-x86-64/stale.dll":          "stale",
		"native/resources/META-INF/mylib-native.properties":      "native=true\n",
		"target/aarch64-unknown-linux-gnu/release/libmylib.so":   "ELF arm",
	})

	cfg := config.DefaultConfig()
	cfg.Target = testTriplet
	cfg.Project.Group = "com.example"
	cfg.Project.Version = testVersion
	cfg.Project.Description = "Native queue bindings"
	cfg.Project.URL = "https://example.com/mylib"
	cfg.Natives.SourceDir = filepath.Join(root, "target")
	cfg.Staging.Dir = filepath.Join(root, "staging")
	cfg.Remote.Username = "deployer"
	cfg.Remote.Password = "s3cret"
	cfg.Remote.ProfileID = "profile-42"
	cfg.Remote.PollInterval = 5 * time.Second
	cfg.Remote.MaxAttempts = 100
	cfg.Modules = []config.ModuleConfig{
		{
			Name:         "api",
			ArtifactID:   "mylib-api",
			ResourcesDir: filepath.Join(root, "api", "resources"),
			Companions:   map[string]string{"javadoc": filepath.Join(root, "api", "javadoc")},
		},
		{
			Name:         "native",
			ArtifactID:   "mylib-native",
			Platform:     true,
			ResourcesDir: filepath.Join(root, "native", "resources"),
			DependsOn:    []string{"api"},
		},
	}

	return &fixture{
		root:    root,
		cfg:     cfg,
		index:   newFakeIndex(t),
		staging: nexustest.NewServer(t, opts...),
		clock:   testutil.NewStepClock(),
		logs:    &syncBuffer{},
	}
}

// orchestrator builds an Orchestrator over the fixture's fakes. Extra
// options are applied last.
func (f *fixture) orchestrator(t *testing.T, extra ...Option) *Orchestrator {
	t.Helper()

	opts := []Option{
		WithLogger(log.NewWithOptions(f.logs, log.Options{Level: log.DebugLevel})),
		WithClock(f.clock),
		WithGate(gate.NewHTTPGate(gate.WithBaseURL(f.index.URL))),
		WithStaging(nexus.NewClient(
			nexus.WithBaseURL(f.staging.URL),
			nexus.WithHTTPClient(f.staging.Client()),
			nexus.WithCredentials(f.cfg.Remote.Username, f.cfg.Remote.Password),
		)),
		WithSigner(stubSigner{}),
		WithOutput(io.Discard, io.Discard),
	}
	o, err := New(f.cfg, append(opts, extra...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o
}

func (f *fixture) coordinate(t *testing.T, o *Orchestrator, module string) artifact.Coordinate {
	t.Helper()
	m, ok := f.cfg.Module(module)
	if !ok {
		t.Fatalf("no module %q", module)
	}
	return o.Descriptor(m).Coordinate()
}

func mustRun(t *testing.T, o *Orchestrator, target Target) *Report {
	t.Helper()
	rep, err := o.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run(%s) error: %v", target, err)
	}
	return rep
}

func mustModule(t *testing.T, rep *Report, name string) ModuleReport {
	t.Helper()
	m, ok := rep.Module(name)
	if !ok {
		t.Fatalf("report has no module %q", name)
	}
	return m
}

func mustTask(t *testing.T, rep *Report, name string) TaskReport {
	t.Helper()
	tr, ok := rep.Task(name)
	if !ok {
		t.Fatalf("report has no task %q", name)
	}
	return tr
}
