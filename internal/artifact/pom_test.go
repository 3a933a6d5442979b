// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"encoding/xml"
	"os"
	"strings"
	"testing"

	"github.com/natrelease/natrelease/pkg/platform"
)

func TestRenderPOM(t *testing.T) {
	t.Parallel()

	d := Descriptor{Module: "native", ArtifactID: "udpqueue-native", Platform: platform.WinX8664, Version: "0.1.1", Group: "club.minnced"}
	info := POMInfo{
		Description: "Rust implementation of the <JDA-NAS> interface",
		URL:         "https://github.com/MinnDevelopment/udpqueue.rs",
		SCM: SCM{
			URL:        "https://github.com/MinnDevelopment/udpqueue.rs",
			Connection: "scm:git:git://github.com/MinnDevelopment/udpqueue.rs",
		},
		Licenses:   []License{{Name: "The Apache Software License, Version 2.0", URL: "https://www.apache.org/licenses/LICENSE-2.0.txt", Distribution: "repo"}},
		Developers: []Developer{{ID: "Minn", Name: "Florian Spieß", Email: "business@minn.dev"}},
	}
	deps := []Coordinate{{Group: "club.minnced", ArtifactID: "udpqueue-api", Version: "0.1.1"}}

	data, err := RenderPOM(d, info, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		GroupID      string `xml:"groupId"`
		ArtifactID   string `xml:"artifactId"`
		Version      string `xml:"version"`
		Description  string `xml:"description"`
		Dependencies []struct {
			ArtifactID string `xml:"artifactId"`
		} `xml:"dependencies>dependency"`
		Licenses []struct {
			Name string `xml:"name"`
		} `xml:"licenses>license"`
	}
	if err := xml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("rendered POM is not valid XML: %v\n%s", err, data)
	}

	if parsed.ArtifactID != "udpqueue-native-win-x86-64" {
		t.Errorf("artifactId = %q", parsed.ArtifactID)
	}
	if parsed.GroupID != "club.minnced" || parsed.Version != "0.1.1" {
		t.Errorf("groupId/version = %q/%q", parsed.GroupID, parsed.Version)
	}
	if parsed.Description != info.Description {
		t.Errorf("description not escaped round-trip: %q", parsed.Description)
	}
	if len(parsed.Dependencies) != 1 || parsed.Dependencies[0].ArtifactID != "udpqueue-api" {
		t.Errorf("dependencies = %+v", parsed.Dependencies)
	}
	if len(parsed.Licenses) != 1 {
		t.Errorf("licenses = %+v", parsed.Licenses)
	}
}

func TestWritePOM(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d := Descriptor{Module: "api", ArtifactID: "udpqueue-api", Version: "1.0.0", Group: "club.minnced"}

	path, err := WritePOM(dir, d, POMInfo{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "udpqueue-api-1.0.0.pom") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "<dependencies>") {
		t.Error("expected no dependencies section")
	}
}
