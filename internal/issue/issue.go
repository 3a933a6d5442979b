// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	UnsupportedPlatformId
	MissingArtifactsId
	ProbeFailureId
	SigningFailureId
	UploadFailureId
	ReleaseTimeoutId
	ValidationFailureId
	BuildFailureId
	DependencyCycleId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	code     string      // stable failure code reported by the release pipeline
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, every issue type is documented
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

// Code is the machine-readable failure code, e.g. "upload-failure".
func (i *Issue) Code() string {
	return i.code
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

const docsBase = "https://github.com/natrelease/natrelease/blob/main/docs/"

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		code: "config-load-failed",
		mdMsg: `
# Failed to load the release configuration!

The configuration file could not be read, did not match the schema, or
declared an inconsistent module graph.

## Things you can try:
- Generate a starter file and compare it with yours:
~~~
$ natrelease config init --path natrelease.example.cue
~~~
- Print the effective configuration, with secrets redacted:
~~~
$ natrelease config show
~~~
- Check that every 'depends_on' entry names a declared module`,
		docLinks: []HttpLink{docsBase + "configuration.md"},
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	unsupportedPlatformIssue = &Issue{
		id:   UnsupportedPlatformId,
		code: "unsupported-platform",
		mdMsg: `
# Unsupported platform!

The host (or the TARGET override) does not map to a platform we can package
native libraries for. Release tasks stop before any work is done.

## Supported targets:
- x86_64/aarch64 Linux (gnu and musl)
- x86_64/i686/aarch64 Windows (msvc)
- x86_64/aarch64 macOS (both collapse to the 'darwin' classifier)

## Things you can try:
- List the known platforms:
~~~
$ natrelease platform --list
~~~
- Set TARGET to a supported Rust triplet and retry`,
		docLinks: []HttpLink{docsBase + "platforms.md"},
		extLinks: []HttpLink{"https://doc.rust-lang.org/nightly/rustc/platform-support.html"},
	}

	missingArtifactsIssue = &Issue{
		id:   MissingArtifactsId,
		code: "missing-artifacts",
		mdMsg: `
# Native artifacts are missing!

The collector found no compiled libraries for the current platform, or the
build output directory does not exist.

## Things you can try:
- Run the build first:
~~~
$ natrelease build
~~~
- Check 'natives.source_dir' points at the cargo target directory
- Make sure the build script honours the TARGET environment variable`,
		docLinks: []HttpLink{docsBase + "tasks.md#collect"},
	}

	probeFailureIssue = &Issue{
		id:   ProbeFailureId,
		code: "probe-failure",
		mdMsg: `
# Could not reach the public index!

The publish gate asks the public repository whether a version already exists
before uploading. The probe failed, so nothing was uploaded for this module.

## Things you can try:
- Check your network connection and proxy settings
- Raise 'index.timeout' if the index is slow
- Run the probe on its own:
~~~
$ natrelease check
~~~`,
		docLinks: []HttpLink{docsBase + "tasks.md#publish"},
	}

	signingFailureIssue = &Issue{
		id:   SigningFailureId,
		code: "signing-failure",
		mdMsg: `
# Signing failed!

The armored private key could not be read or unlocked, or a staged file
could not be signed.

## Things you can try:
- Export the key in ASCII armor:
~~~
$ gpg --export-secret-keys --armor <key-id>
~~~
- Put it in SIGNING_KEY (or GPG_KEY) and the passphrase in SIGNING_PASSWORD
- Unset both to stage unsigned artifacts locally`,
		docLinks: []HttpLink{docsBase + "signing.md"},
	}

	uploadFailureIssue = &Issue{
		id:   UploadFailureId,
		code: "upload-failure",
		mdMsg: `
# Upload to the staging repository failed!

The staging service rejected a request. The error carries the HTTP status and
the response body it returned.

## Things you can try:
- Check OSSRH_USER and OSSRH_PASSWORD
- Check STAGING_PROFILE_ID belongs to your group
- Retry the publish task; versions already on the index are skipped`,
		docLinks: []HttpLink{docsBase + "tasks.md#publish"},
		extLinks: []HttpLink{"https://central.sonatype.org/publish/publish-guide/"},
	}

	releaseTimeoutIssue = &Issue{
		id:   ReleaseTimeoutId,
		code: "release-timeout",
		mdMsg: `
# The staging repository did not settle in time!

The repository was still transitioning after the maximum number of polls.
Its final state is unknown, so the release is reported as incomplete.

## Things you can try:
- Inspect the repository in the staging web UI
- Raise 'remote.max_attempts' or 'remote.poll_interval'
- Release it manually once it is closed`,
		docLinks: []HttpLink{docsBase + "tasks.md#release"},
	}

	validationFailureIssue = &Issue{
		id:   ValidationFailureId,
		code: "validation-failure",
		mdMsg: `
# Staging validation failed!

The staging service refused to close the repository. This usually means a
missing signature, checksum, or required POM element.

## Things you can try:
- Configure a signing key; unsigned artifacts never pass validation
- Fill in 'project.url', 'project.scm', 'project.licenses' and 'project.developers'
- Read the activity log of the repository in the staging web UI`,
		docLinks: []HttpLink{docsBase + "tasks.md#release"},
		extLinks: []HttpLink{"https://central.sonatype.org/publish/requirements/"},
	}

	buildFailureIssue = &Issue{
		id:   BuildFailureId,
		code: "build-failure",
		mdMsg: `
# The build script failed!

The configured 'build.script' exited with a non-zero status.

## Things you can try:
- Run the script by hand with TARGET set to the reported triplet
- Check the script output above the error
- Make sure the Rust toolchain for the target is installed:
~~~
$ rustup target add <triplet>
~~~`,
		docLinks: []HttpLink{docsBase + "tasks.md#build"},
	}

	dependencyCycleIssue = &Issue{
		id:   DependencyCycleId,
		code: "dependency-cycle",
		mdMsg: `
# Dependency cycle detected!

The modules' 'depends_on' entries form a cycle, so no release order exists.

## Things you can try:
- Show the planned task order:
~~~
$ natrelease plan release
~~~
- Remove one of the edges reported in the error`,
		docLinks: []HttpLink{docsBase + "configuration.md#modules"},
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		unsupportedPlatformIssue.Id(): unsupportedPlatformIssue,
		missingArtifactsIssue.Id():    missingArtifactsIssue,
		probeFailureIssue.Id():        probeFailureIssue,
		signingFailureIssue.Id():      signingFailureIssue,
		uploadFailureIssue.Id():       uploadFailureIssue,
		releaseTimeoutIssue.Id():      releaseTimeoutIssue,
		validationFailureIssue.Id():   validationFailureIssue,
		buildFailureIssue.Id():        buildFailureIssue,
		dependencyCycleIssue.Id():     dependencyCycleIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}

// ByCode returns the issue for a failure code, or nil when none is registered.
func ByCode(code string) *Issue {
	for _, i := range issues {
		if i.code == code {
			return i
		}
	}
	return nil
}
