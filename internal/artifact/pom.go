// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

type (
	// POMInfo is the static project metadata shared by every module.
	POMInfo struct {
		Description string
		URL         string
		SCM         SCM
		Licenses    []License
		Developers  []Developer
	}

	// SCM describes the source repository.
	SCM struct {
		URL                 string
		Connection          string
		DeveloperConnection string
	}

	// License is a POM license entry.
	License struct {
		Name         string
		URL          string
		Distribution string
	}

	// Developer is a POM developer entry.
	Developer struct {
		ID    string
		Name  string
		Email string
	}

	pomData struct {
		Descriptor
		Info         POMInfo
		Dependencies []Coordinate
	}
)

//nolint:gochecknoglobals // Parsed once; templates are safe for concurrent use.
var pomTemplate = template.Must(template.New("pom").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd">
  <modelVersion>4.0.0</modelVersion>
  <groupId>{{xml .Group}}</groupId>
  <artifactId>{{xml .Name}}</artifactId>
  <version>{{xml .Version}}</version>
  <packaging>jar</packaging>
  <name>{{xml .Name}}</name>
{{- with .Info.Description}}
  <description>{{xml .}}</description>
{{- end}}
{{- with .Info.URL}}
  <url>{{xml .}}</url>
{{- end}}
{{- if .Info.Licenses}}
  <licenses>
{{- range .Info.Licenses}}
    <license>
      <name>{{xml .Name}}</name>
      <url>{{xml .URL}}</url>
      <distribution>{{xml .Distribution}}</distribution>
    </license>
{{- end}}
  </licenses>
{{- end}}
{{- if .Info.Developers}}
  <developers>
{{- range .Info.Developers}}
    <developer>
      <id>{{xml .ID}}</id>
      <name>{{xml .Name}}</name>
      <email>{{xml .Email}}</email>
    </developer>
{{- end}}
  </developers>
{{- end}}
{{- with .Info.SCM}}{{if .URL}}
  <scm>
    <url>{{xml .URL}}</url>
    <connection>{{xml .Connection}}</connection>
    <developerConnection>{{xml .DeveloperConnection}}</developerConnection>
  </scm>
{{- end}}{{end}}
{{- if .Dependencies}}
  <dependencies>
{{- range .Dependencies}}
    <dependency>
      <groupId>{{xml .Group}}</groupId>
      <artifactId>{{xml .ArtifactID}}</artifactId>
      <version>{{xml .Version}}</version>
      <scope>compile</scope>
    </dependency>
{{- end}}
  </dependencies>
{{- end}}
</project>
`))

// RenderPOM renders the POM for d. deps are the coordinates of modules d
// depends on and become compile-scope dependencies.
func RenderPOM(d Descriptor, info POMInfo, deps []Coordinate) ([]byte, error) {
	var buf bytes.Buffer
	if err := pomTemplate.Execute(&buf, pomData{Descriptor: d, Info: info, Dependencies: deps}); err != nil {
		return nil, fmt.Errorf("rendering pom for %s: %w", d.Name(), err)
	}
	return buf.Bytes(), nil
}

// WritePOM renders the POM for d into dir and returns the written path.
func WritePOM(dir string, d Descriptor, info POMInfo, deps []Coordinate) (string, error) {
	data, err := RenderPOM(d, info, deps)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, d.FileName("", "pom"))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("writing pom: %w", err)
	}
	return out, nil
}

func xmlEscape(s string) string {
	var sb strings.Builder
	// EscapeText only fails when the writer fails; strings.Builder never does.
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
