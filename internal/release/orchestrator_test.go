// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/natrelease/natrelease/internal/artifact"
	"github.com/natrelease/natrelease/internal/dag"
	"github.com/natrelease/natrelease/internal/gate"
	"github.com/natrelease/natrelease/internal/nexus/nexustest"
	"github.com/natrelease/natrelease/internal/testutil"
	"github.com/natrelease/natrelease/pkg/platform"
)

const (
	apiFiles    = 18 // jar, javadoc jar and pom, each with 4 checksums and a signature
	nativeFiles = 12 // jar and pom, each with 4 checksums and a signature
)

func TestNew_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Target = "sparc64-sun-solaris"

	_, err := New(f.cfg)
	if !errors.Is(err, platform.ErrUnsupportedPlatform) {
		t.Fatalf("New() error = %v, want ErrUnsupportedPlatform", err)
	}
	if got := Classify(err); got != CodeUnsupportedPlatform {
		t.Errorf("Classify() = %q, want %q", got, CodeUnsupportedPlatform)
	}
}

func TestNew_DefaultTriplet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Target = ""
	o := f.orchestrator(t)

	if o.Triplet() != platform.DefaultTriplet {
		t.Errorf("Triplet() = %q, want %q", o.Triplet(), platform.DefaultTriplet)
	}
	if o.Platform() != platform.LinuxX8664 {
		t.Errorf("Platform() = %q, want %q", o.Platform(), platform.LinuxX8664)
	}
}

func TestNew_VersionFromCargoManifest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.WriteFiles(t, f.root, map[string]string{
		"Cargo.toml": "[package]\nname = \"mylib\"\nversion = \"0.3.1\"\n",
	})
	f.cfg.Project.Version = ""
	f.cfg.Project.CargoManifest = filepath.Join(f.root, "Cargo.toml")

	o := f.orchestrator(t)
	if o.Version() != "0.3.1" {
		t.Errorf("Version() = %q, want 0.3.1", o.Version())
	}
	if got := f.coordinate(t, o, "native").ArtifactID; got != "mylib-native-linux-x86-64" {
		t.Errorf("native artifact id = %q", got)
	}
}

func TestNew_InvalidSigningKeyFailsStage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Signing.Key = "not an armored key"

	o := f.orchestrator(t, WithSigner(nil))
	rep := mustRun(t, o, TargetStage)

	for _, name := range []string{"api", "native"} {
		m := mustModule(t, rep, name)
		if m.Outcome != dag.Failed || m.State != Failed {
			t.Errorf("%s: outcome %s state %s, want failed/failed", name, m.Outcome, m.State)
		}
		if Classify(m.Err) != CodeSigningFailure {
			t.Errorf("%s: code %q, want %q", name, Classify(m.Err), CodeSigningFailure)
		}
	}
}

func TestPlan_TargetClosure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)

	tests := []struct {
		target Target
		want   []string
	}{
		{TargetClean, []string{"clean"}},
		{TargetBuild, []string{"clean", "build"}},
		{TargetCollect, []string{"clean", "build", "collect:native"}},
		{TargetStage, []string{"clean", "build", "stage:api", "collect:native", "stage:native"}},
		{TargetPublish, []string{"clean", "build", "stage:api", "publish:api", "collect:native", "stage:native", "publish:native"}},
		{TargetRelease, []string{
			"clean", "build", "stage:api", "publish:api", "release:api",
			"collect:native", "stage:native", "publish:native", "release:native",
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			t.Parallel()

			g, err := o.Plan(tt.target)
			if err != nil {
				t.Fatalf("Plan() error: %v", err)
			}
			got := g.Nodes()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Plan(%s) nodes = %v, want %v", tt.target, got, tt.want)
			}
			if _, err := g.TopologicalSort(); err != nil {
				t.Errorf("TopologicalSort() error: %v", err)
			}
		})
	}
}

func TestPlan_PublishOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)

	g, err := o.Plan(TargetRelease)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort() error: %v", err)
	}
	pos := func(n string) int { return slices.Index(order, n) }

	pairs := [][2]string{
		{"clean", "build"},
		{"build", "collect:native"},
		{"collect:native", "stage:native"},
		{"stage:native", "publish:native"},
		{"publish:api", "publish:native"},
		{"publish:native", "release:native"},
		{"release:api", "release:native"},
	}
	for _, p := range pairs {
		if pos(p[0]) >= pos(p[1]) {
			t.Errorf("%s must precede %s in %v", p[0], p[1], order)
		}
	}
}

func TestPlan_DependencyCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Modules[0].DependsOn = []string{"native"}
	o := f.orchestrator(t)

	_, err := o.Run(context.Background(), TargetPublish)
	var cycle *dag.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Run() error = %v, want *dag.CycleError", err)
	}
	if Classify(err) != CodeDependencyCycle {
		t.Errorf("Classify() = %q", Classify(err))
	}
}

func TestRun_Release(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)
	rep := mustRun(t, o, TargetRelease)

	if err := rep.Err(); err != nil {
		t.Fatalf("Report.Err() = %v", err)
	}
	if rep.Failed() || rep.Incomplete() {
		t.Fatalf("Failed() = %v, Incomplete() = %v", rep.Failed(), rep.Incomplete())
	}

	for _, tc := range []struct {
		name  string
		files int
	}{{"api", apiFiles}, {"native", nativeFiles}} {
		m := mustModule(t, rep, tc.name)
		if m.State != Released || m.Outcome != dag.Succeeded {
			t.Errorf("%s: state %s outcome %s, want released/succeeded", tc.name, m.State, m.Outcome)
		}
		if m.Uploaded != tc.files || len(m.Staged) != tc.files {
			t.Errorf("%s: uploaded %d staged %d, want %d", tc.name, m.Uploaded, len(m.Staged), tc.files)
		}
		if got := f.staging.UploadPaths(m.RepositoryID); len(got) != tc.files {
			t.Errorf("%s: server saw %d uploads in %s, want %d", tc.name, len(got), m.RepositoryID, tc.files)
		}
	}

	if got := f.staging.Calls("start"); got != 2 {
		t.Errorf("start calls = %d, want 2", got)
	}
	if got := f.staging.Calls("promote"); got != 2 {
		t.Errorf("promote calls = %d, want 2", got)
	}
	for _, p := range f.staging.Profiles() {
		if p != "profile-42" {
			t.Errorf("profile = %q, want profile-42", p)
		}
	}

	// One wait before the close poll and one before the release poll.
	waits := f.clock.Waits()
	if len(waits) != 4 {
		t.Errorf("clock waits = %v, want 4 waits", waits)
	}
	for _, w := range waits {
		if w != 5*time.Second {
			t.Errorf("wait = %s, want 5s", w)
		}
	}

	if got := mustTask(t, rep, "release:native").Outcome; got != dag.Succeeded {
		t.Errorf("release:native outcome = %s", got)
	}
}

func TestRun_StagingLayout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)
	rep := mustRun(t, o, TargetStage)

	native := mustModule(t, rep, "native")
	if native.State != Staged {
		t.Fatalf("native state = %s, want staged", native.State)
	}

	base := "com/example/mylib-native-linux-x86-64/1.2.0/mylib-native-linux-x86-64-1.2.0"
	for _, want := range []string{
		base + ".jar",
		base + ".jar.asc",
		base + ".jar.md5",
		base + ".jar.sha1",
		base + ".jar.sha256",
		base + ".jar.sha512",
		base + ".pom",
		base + ".pom.asc",
	} {
		if !slices.Contains(native.Staged, want) {
			t.Errorf("staged files %v missing %s", native.Staged, want)
		}
	}

	entries, err := artifact.ListArchive(filepath.Join(f.cfg.Staging.Dir, filepath.FromSlash(base+".jar")))
	if err != nil {
		t.Fatalf("ListArchive() error: %v", err)
	}
	if !slices.Contains(entries, "natives/linux-x86-64/libmylib.so") {
		t.Errorf("jar entries %v missing current platform library", entries)
	}
	for _, e := range entries {
		if strings.HasPrefix(e, "natives/win-x86-64/") || strings.Contains(e, "build-script-marker") {
			t.Errorf("jar must not contain %s", e)
		}
	}

	pom := testutil.MustReadFile(t, filepath.Join(f.cfg.Staging.Dir, filepath.FromSlash(base+".pom")))
	if !strings.Contains(pom, "<artifactId>mylib-api</artifactId>") {
		t.Errorf("native pom should depend on the api module:\n%s", pom)
	}

	if f.index.probeCount() != 0 || f.staging.Calls("start") != 0 {
		t.Error("stage target must not contact the index or the staging service")
	}
}

func TestRun_SecondRunUploadsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)

	first := mustRun(t, o, TargetRelease)
	if err := first.Err(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	uploads := f.staging.Calls("upload")
	starts := f.staging.Calls("start")
	f.index.publish(f.coordinate(t, o, "api"), f.coordinate(t, o, "native"))

	second := mustRun(t, o, TargetRelease)
	if err := second.Err(); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := f.staging.Calls("upload"); got != uploads {
		t.Errorf("uploads after second run = %d, want %d", got, uploads)
	}
	if got := f.staging.Calls("start"); got != starts {
		t.Errorf("starts after second run = %d, want %d", got, starts)
	}
	for _, name := range []string{"api", "native"} {
		m := mustModule(t, second, name)
		if !m.AlreadyPublished || m.State != Staged || m.Uploaded != 0 {
			t.Errorf("%s: already=%v state=%s uploaded=%d", name, m.AlreadyPublished, m.State, m.Uploaded)
		}
		if got := mustTask(t, second, TaskName(TargetRelease, name)).Outcome; got != dag.Skipped {
			t.Errorf("release:%s outcome = %s, want skipped", name, got)
		}
	}
}

func TestRun_NativePublishesWhenAPIAlreadyPublished(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)
	f.index.publish(f.coordinate(t, o, "api"))

	rep := mustRun(t, o, TargetRelease)
	if err := rep.Err(); err != nil {
		t.Fatalf("Report.Err() = %v", err)
	}

	api := mustModule(t, rep, "api")
	if !api.AlreadyPublished || api.Uploaded != 0 {
		t.Errorf("api: already=%v uploaded=%d", api.AlreadyPublished, api.Uploaded)
	}
	if got := mustTask(t, rep, "publish:api").Outcome; got != dag.Skipped {
		t.Errorf("publish:api outcome = %s, want skipped", got)
	}

	native := mustModule(t, rep, "native")
	if native.State != Released || native.Uploaded != nativeFiles {
		t.Errorf("native: state=%s uploaded=%d", native.State, native.Uploaded)
	}
	if got := f.staging.Calls("start"); got != 1 {
		t.Errorf("start calls = %d, want 1", got)
	}
}

func TestRun_FailedAPIUploadBlocksNative(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nexustest.WithUploadStatus(500))
	o := f.orchestrator(t)
	rep := mustRun(t, o, TargetRelease)

	pub := mustTask(t, rep, "publish:api")
	if pub.Outcome != dag.Failed {
		t.Fatalf("publish:api outcome = %s, want failed", pub.Outcome)
	}
	var ue *UploadError
	if !errors.As(pub.Err, &ue) {
		t.Fatalf("publish:api error = %v, want *UploadError", pub.Err)
	}
	if ue.Status != 500 || !strings.Contains(ue.Body, "deploy rejected") {
		t.Errorf("UploadError status=%d body=%q", ue.Status, ue.Body)
	}

	native := mustTask(t, rep, "publish:native")
	if native.Outcome != dag.Blocked || native.BlockedBy != "publish:api" {
		t.Errorf("publish:native = %s blocked by %q, want blocked by publish:api", native.Outcome, native.BlockedBy)
	}
	if got := f.staging.Calls("upload"); got != 1 {
		t.Errorf("upload calls = %d, want 1", got)
	}
	if got := f.staging.Calls("start"); got != 1 {
		t.Errorf("start calls = %d, want 1 (native never started)", got)
	}
	if rep.Code() != CodeUploadFailure {
		t.Errorf("Report.Code() = %q", rep.Code())
	}
	if m := mustModule(t, rep, "native"); m.State != Staged || m.Outcome != dag.Blocked {
		t.Errorf("native: state=%s outcome=%s", m.State, m.Outcome)
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Modules[1].DependsOn = nil
	f.cfg.Modules[0].ResourcesDir = filepath.Join(f.root, "missing")
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetRelease)

	api := mustModule(t, rep, "api")
	if api.State != Failed || api.Outcome != dag.Failed {
		t.Errorf("api: state=%s outcome=%s", api.State, api.Outcome)
	}
	if Classify(api.Err) != CodeMissingArtifacts {
		t.Errorf("api code = %q", Classify(api.Err))
	}
	var se *StepError
	if !errors.As(api.Err, &se) || se.Module != "api" || se.Step != "stage" {
		t.Errorf("api error = %v, want StepError for api/stage", api.Err)
	}
	for _, n := range []string{"publish:api", "release:api"} {
		if got := mustTask(t, rep, n).Outcome; got != dag.Blocked {
			t.Errorf("%s outcome = %s, want blocked", n, got)
		}
	}

	native := mustModule(t, rep, "native")
	if native.State != Released {
		t.Errorf("native state = %s, want released", native.State)
	}
}

func TestRun_PollingBoundedByMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nexustest.WithNeverTransition())
	f.cfg.Modules = f.cfg.Modules[:1]
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetRelease)

	if got := f.staging.Calls("get"); got != 100 {
		t.Errorf("status reads = %d, want exactly 100", got)
	}
	waits := f.clock.Waits()
	if len(waits) != 100 {
		t.Errorf("waits = %d, want 100", len(waits))
	}
	if f.clock.Elapsed() != 100*5*time.Second {
		t.Errorf("elapsed = %s, want 8m20s", f.clock.Elapsed())
	}

	if !rep.Incomplete() {
		t.Error("Incomplete() = false, want true")
	}
	api := mustModule(t, rep, "api")
	if api.Outcome != dag.Incomplete || api.State != Validating {
		t.Errorf("api: outcome=%s state=%s, want incomplete/validating", api.Outcome, api.State)
	}
	var te *ReleaseTimeoutError
	if !errors.As(api.Err, &te) {
		t.Fatalf("api error = %v, want *ReleaseTimeoutError", api.Err)
	}
	if te.Attempts != 100 || te.Phase != PhaseClose || te.RepositoryID != api.RepositoryID {
		t.Errorf("ReleaseTimeoutError = %+v", te)
	}
	if rep.Code() != CodeReleaseTimeout {
		t.Errorf("Report.Code() = %q", rep.Code())
	}
	if f.staging.Calls("promote") != 0 {
		t.Error("promote must not be requested before close settles")
	}
}

func TestRun_CloseValidationFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nexustest.WithFailingClose(3))
	f.cfg.Modules = f.cfg.Modules[:1]
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetRelease)
	api := mustModule(t, rep, "api")
	if api.State != Failed || api.Outcome != dag.Failed {
		t.Errorf("api: state=%s outcome=%s", api.State, api.Outcome)
	}
	var ve *ValidationError
	if !errors.As(api.Err, &ve) || ve.Notifications != 3 {
		t.Errorf("api error = %v, want ValidationError with 3 notifications", api.Err)
	}
	if rep.Code() != CodeValidationFailure {
		t.Errorf("Report.Code() = %q", rep.Code())
	}
	if f.staging.Calls("promote") != 0 {
		t.Error("promote must not follow a failed close")
	}
}

func TestRun_FailedAPIReleaseBlocksNativeRelease(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nexustest.WithFailingClose(1))
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetRelease)

	if api := mustModule(t, rep, "api"); api.State != Failed || Classify(api.Err) != CodeValidationFailure {
		t.Errorf("api: state=%s err=%v", api.State, api.Err)
	}
	native := mustModule(t, rep, "native")
	if native.State != Uploaded || native.Uploaded != nativeFiles {
		t.Errorf("native: state=%s uploaded=%d", native.State, native.Uploaded)
	}
	tr := mustTask(t, rep, "release:native")
	if tr.Outcome != dag.Blocked {
		t.Errorf("release:native outcome = %s, want blocked", tr.Outcome)
	}
	if got := f.staging.Calls("close"); got != 1 {
		t.Errorf("close calls = %d, want 1 (native never closed)", got)
	}
	if f.staging.Calls("promote") != 0 {
		t.Error("nothing may be promoted after the api release failed")
	}
}

func TestRun_ReleasedWhenDroppedAfterPromote(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nexustest.WithDropAfterPromote(), nexustest.WithTransitionPolls(3))
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetRelease)
	if err := rep.Err(); err != nil {
		t.Fatalf("Report.Err() = %v", err)
	}
	for _, name := range []string{"api", "native"} {
		if m := mustModule(t, rep, name); m.State != Released {
			t.Errorf("%s state = %s, want released", name, m.State)
		}
	}
	// Three reads per phase and module.
	if got := f.staging.Calls("get"); got != 12 {
		t.Errorf("status reads = %d, want 12", got)
	}
}

func TestRun_LocalOnlyMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Remote.Password = ""
	o := f.orchestrator(t)

	if !o.LocalOnly() {
		t.Fatal("LocalOnly() = false with a missing password")
	}
	rep := mustRun(t, o, TargetRelease)
	if err := rep.Err(); err != nil {
		t.Fatalf("Report.Err() = %v", err)
	}

	for _, name := range []string{"api", "native"} {
		m := mustModule(t, rep, name)
		if !m.LocalOnly || m.State != Staged || m.Outcome != dag.Succeeded {
			t.Errorf("%s: localOnly=%v state=%s outcome=%s", name, m.LocalOnly, m.State, m.Outcome)
		}
		for _, kind := range []Target{TargetPublish, TargetRelease} {
			if got := mustTask(t, rep, TaskName(kind, name)).Outcome; got != dag.Skipped {
				t.Errorf("%s:%s outcome = %s, want skipped", kind, name, got)
			}
		}
	}
	if f.index.probeCount() != 0 {
		t.Errorf("index probed %d times in local-only mode", f.index.probeCount())
	}
	if f.staging.Calls("start")+f.staging.Calls("upload") != 0 {
		t.Error("staging service contacted in local-only mode")
	}
	logs := f.logs.String()
	if !strings.Contains(logs, "local-only mode") || !strings.Contains(logs, "OSSRH_PASSWORD") {
		t.Errorf("logs should explain local-only mode:\n%s", logs)
	}
}

func TestRun_UnsignedWarnsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t, WithSigner(nil))
	if o.Signed() {
		t.Fatal("Signed() = true without a key")
	}

	rep := mustRun(t, o, TargetStage)
	if err := rep.Err(); err != nil {
		t.Fatalf("Report.Err() = %v", err)
	}
	if got := strings.Count(f.logs.String(), "no signing key configured"); got != 1 {
		t.Errorf("unsigned warning logged %d times, want 1", got)
	}
	for _, m := range rep.Modules {
		for _, s := range m.Staged {
			if strings.HasSuffix(s, ".asc") {
				t.Errorf("%s: unexpected signature %s", m.Name, s)
			}
		}
	}
	if m := mustModule(t, rep, "native"); len(m.Staged) != 10 {
		t.Errorf("native staged %d files, want 10", len(m.Staged))
	}
}

func TestRun_ProbeFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	probe := gateFunc(func(_ context.Context, coord artifact.Coordinate) (gate.Decision, error) {
		return gate.Decision{}, &gate.ProbeError{Coordinate: coord, URL: "https://index.invalid", Err: errors.New("no such host")}
	})
	o := f.orchestrator(t, WithGate(probe))

	rep := mustRun(t, o, TargetPublish)
	api := mustModule(t, rep, "api")
	if Classify(api.Err) != CodeProbeFailure || api.State != Failed {
		t.Errorf("api: code=%q state=%s", Classify(api.Err), api.State)
	}
	if got := mustTask(t, rep, "publish:native").Outcome; got != dag.Blocked {
		t.Errorf("publish:native outcome = %s, want blocked", got)
	}
	if f.staging.Calls("start") != 0 {
		t.Error("a failed probe must never default to publishing")
	}
}

func TestRun_BuildScript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Build.Script = `echo "$TARGET $PLATFORM $VERSION" > build-env.txt`
	f.cfg.Build.Dir = f.root
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetBuild)
	if err := rep.Err(); err != nil {
		t.Fatalf("Report.Err() = %v", err)
	}
	got := testutil.MustReadFile(t, filepath.Join(f.root, "build-env.txt"))
	if want := testTriplet + " linux-x86-64 " + testVersion + "\n"; got != want {
		t.Errorf("build env = %q, want %q", got, want)
	}
	if len(rep.Modules) != 0 {
		t.Errorf("build target should not touch modules, got %d", len(rep.Modules))
	}
}

func TestRun_BuildFailureBlocksEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Build.Script = "exit 3"
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetStage)
	if got := mustTask(t, rep, "build").Outcome; got != dag.Failed {
		t.Fatalf("build outcome = %s", got)
	}
	if rep.Code() != CodeBuildFailure {
		t.Errorf("Report.Code() = %q", rep.Code())
	}
	for _, n := range []string{"stage:api", "collect:native", "stage:native"} {
		if tr := mustTask(t, rep, n); tr.Outcome != dag.Blocked {
			t.Errorf("%s outcome = %s, want blocked", n, tr.Outcome)
		}
	}
}

func TestRun_OtherPlatform(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Target = "aarch64-unknown-linux-gnu"
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetStage)
	native := mustModule(t, rep, "native")
	if native.Coordinate.ArtifactID != "mylib-native-linux-aarch64" {
		t.Errorf("native artifact id = %q", native.Coordinate.ArtifactID)
	}
	if native.State != Staged {
		t.Errorf("native state = %s: %v", native.State, native.Err)
	}
}

func TestRun_MissingNatives(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Target = "x86_64-pc-windows-msvc"
	o := f.orchestrator(t)

	rep := mustRun(t, o, TargetStage)
	native := mustModule(t, rep, "native")
	if Classify(native.Err) != CodeMissingArtifacts {
		t.Errorf("native code = %q: %v", Classify(native.Err), native.Err)
	}
	if got := mustTask(t, rep, "collect:native").Outcome; got != dag.Failed {
		t.Errorf("collect:native outcome = %s", got)
	}
	if api := mustModule(t, rep, "api"); api.State != Staged {
		t.Errorf("api state = %s, want staged", api.State)
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := o.Run(ctx, TargetRelease)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !errors.Is(rep.Err(), context.Canceled) {
		t.Errorf("Report.Err() = %v, want context.Canceled", rep.Err())
	}
	if f.staging.Calls("start") != 0 {
		t.Error("cancelled run must not start a staging repository")
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(t)
	f.index.publish(f.coordinate(t, o, "api"))

	results := o.Check(context.Background())
	if len(results) != 2 {
		t.Fatalf("Check() returned %d results", len(results))
	}
	if results[0].Module != "api" || results[0].Decision.ShouldPublish() {
		t.Errorf("api = %+v, want already published", results[0])
	}
	if results[1].Module != "native" || !results[1].Decision.ShouldPublish() || results[1].Err != nil {
		t.Errorf("native = %+v, want publish", results[1])
	}
	if f.index.probeCount() != 2 {
		t.Errorf("probes = %d, want 2", f.index.probeCount())
	}
}
