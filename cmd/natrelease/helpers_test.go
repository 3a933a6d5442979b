// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/config"
	"github.com/natrelease/natrelease/internal/gate"
	"github.com/natrelease/natrelease/internal/release"
	"github.com/natrelease/natrelease/internal/testutil"
)

const testVersion = "1.2.0"

type (
	// staticConfig returns a copy of cfg, or err.
	staticConfig struct {
		cfg *config.Config
		err error
	}

	stubSigner struct{}

	gateFunc func(ctx context.Context, coord artifact.Coordinate) (gate.Decision, error)

	// cli is an App with captured output.
	cli struct {
		app    *App
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	}
)

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := *s.cfg
	return &c, nil
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

// notPublished answers every probe with a 404.
func notPublished(_ context.Context, coord artifact.Coordinate) (gate.Decision, error) {
	return gate.Decision{Coordinate: coord, Status: 404}, nil
}

// newWorkspace writes a single-module project without staging credentials.
func newWorkspace(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"api/resources/META-INF/mylib.properties": "version=" + testVersion + "\n",
	})

	cfg := config.DefaultConfig()
	cfg.Target = "x86_64-unknown-linux-gnu"
	cfg.Project.Group = "com.example"
	cfg.Project.Version = testVersion
	cfg.Project.Description = "Native queue bindings"
	cfg.Natives.SourceDir = filepath.Join(root, "target")
	cfg.Staging.Dir = filepath.Join(root, "staging")
	cfg.Modules = []config.ModuleConfig{{
		Name:         "api",
		ArtifactID:   "mylib-api",
		ResourcesDir: filepath.Join(root, "api", "resources"),
	}}
	return cfg
}

func newCLI(t *testing.T, provider ConfigProvider, opts ...release.Option) *cli {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config:         provider,
		ReleaseOptions: append([]release.Option{release.WithClock(testutil.NewStepClock())}, opts...),
		Stdout:         &stdout,
		Stderr:         &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	return &cli{app: app, stdout: &stdout, stderr: &stderr}
}

func (c *cli) run(args ...string) error {
	root := NewRootCommand(c.app)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

// exitCode returns the code carried by err, ExitOK for nil and -1 for
// errors that are not an ExitError.
func exitCode(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}
