// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrConfigExists is returned by WriteStarter when the target file exists.
var ErrConfigExists = errors.New("config file already exists")

// redacted replaces secrets in rendered configuration.
const redacted = "<redacted>"

// StarterConfig returns the configuration written by 'config init': one
// interface module and one platform module depending on it.
func StarterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Project.Group = "com.example"
	cfg.Project.Description = "Native library bindings"
	cfg.Project.Licenses = []LicenseConfig{{
		Name:         "The Apache Software License, Version 2.0",
		URL:          "https://www.apache.org/licenses/LICENSE-2.0.txt",
		Distribution: "repo",
	}}
	cfg.Build.Script = "cargo build --release --target \"$TARGET\""
	cfg.Modules = []ModuleConfig{
		{
			Name:         "api",
			ArtifactID:   "mylib-api",
			ResourcesDir: "api/build/classes",
			Companions: map[string]string{
				"javadoc": "api/build/docs/javadoc",
				"sources": "api/src/main/java",
			},
		},
		{
			Name:         "native",
			ArtifactID:   "mylib-native",
			Platform:     true,
			ResourcesDir: "native/src/main/resources",
			DependsOn:    []string{"api"},
		},
	}
	return cfg
}

// WriteStarter writes StarterConfig to path, refusing to overwrite.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(StarterConfig(), false)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE renders cfg as a natrelease.cue document. When redact is true,
// passwords and key material are masked.
func GenerateCUE(cfg *Config, redact bool) string {
	var sb strings.Builder
	w := func(indent int, format string, args ...any) {
		sb.WriteString(strings.Repeat("\t", indent))
		fmt.Fprintf(&sb, format, args...)
		sb.WriteString("\n")
	}
	secret := func(s string) string {
		if redact && s != "" {
			return redacted
		}
		return s
	}

	w(0, "// natrelease configuration")
	w(0, "// Credentials are best supplied via %s, %s and %s.", EnvUsername, EnvPassword, EnvStagingProfile)
	sb.WriteString("\n")
	if cfg.Target != "" {
		w(0, "target: %q", cfg.Target)
	}

	w(0, "project: {")
	w(1, "group: %q", cfg.Project.Group)
	if cfg.Project.Version != "" {
		w(1, "version: %q", cfg.Project.Version)
	}
	w(1, "cargo_manifest: %q", cfg.Project.CargoManifest)
	if cfg.Project.Description != "" {
		w(1, "description: %q", cfg.Project.Description)
	}
	if cfg.Project.URL != "" {
		w(1, "url: %q", cfg.Project.URL)
	}
	if cfg.Project.SCM.URL != "" {
		w(1, "scm: {url: %q, connection: %q, developer_connection: %q}",
			cfg.Project.SCM.URL, cfg.Project.SCM.Connection, cfg.Project.SCM.DeveloperConnection)
	}
	if len(cfg.Project.Licenses) > 0 {
		w(1, "licenses: [")
		for _, l := range cfg.Project.Licenses {
			w(2, "{name: %q, url: %q, distribution: %q},", l.Name, l.URL, distribution(l.Distribution))
		}
		w(1, "]")
	}
	if len(cfg.Project.Developers) > 0 {
		w(1, "developers: [")
		for _, d := range cfg.Project.Developers {
			w(2, "{id: %q, name: %q, email: %q},", d.ID, d.Name, d.Email)
		}
		w(1, "]")
	}
	w(0, "}")

	w(0, "natives: source_dir: %q", cfg.Natives.SourceDir)
	if cfg.Build.Script != "" || cfg.Build.Dir != "" {
		w(0, "build: {")
		w(1, "script: %q", cfg.Build.Script)
		if cfg.Build.Dir != "" {
			w(1, "dir: %q", cfg.Build.Dir)
		}
		w(0, "}")
	}
	w(0, "staging: {dir: %q, concurrency: %d}", cfg.Staging.Dir, cfg.Staging.Concurrency)
	w(0, "index: {url: %q, timeout: %q}", cfg.Index.URL, duration(cfg.Index.Timeout))

	w(0, "remote: {")
	w(1, "url: %q", cfg.Remote.URL)
	if cfg.Remote.ProfileID != "" {
		w(1, "profile_id: %q", cfg.Remote.ProfileID)
	}
	if cfg.Remote.Username != "" {
		w(1, "username: %q", cfg.Remote.Username)
	}
	if cfg.Remote.Password != "" {
		w(1, "password: %q", secret(cfg.Remote.Password))
	}
	w(1, "connect_timeout: %q", duration(cfg.Remote.ConnectTimeout))
	w(1, "client_timeout: %q", duration(cfg.Remote.ClientTimeout))
	w(1, "poll_interval: %q", duration(cfg.Remote.PollInterval))
	w(1, "max_attempts: %d", cfg.Remote.MaxAttempts)
	w(0, "}")

	if cfg.Signing.Key != "" || cfg.Signing.KeyFile != "" {
		w(0, "signing: {")
		if cfg.Signing.Key != "" {
			w(1, "key: %q", secret(cfg.Signing.Key))
		}
		if cfg.Signing.KeyFile != "" {
			w(1, "key_file: %q", cfg.Signing.KeyFile)
		}
		if cfg.Signing.Password != "" {
			w(1, "password: %q", secret(cfg.Signing.Password))
		}
		w(0, "}")
	}

	if len(cfg.Modules) > 0 {
		w(0, "modules: [")
		for _, m := range cfg.Modules {
			w(1, "{")
			w(2, "name: %q", m.Name)
			w(2, "artifact_id: %q", m.ArtifactID)
			if m.Platform {
				w(2, "platform: true")
			}
			w(2, "resources_dir: %q", m.ResourcesDir)
			if len(m.Companions) > 0 {
				w(2, "companions: {")
				for _, c := range m.Classifiers() {
					w(3, "%q: %q", c, m.Companions[c])
				}
				w(2, "}")
			}
			if len(m.DependsOn) > 0 {
				quoted := make([]string, 0, len(m.DependsOn))
				for _, d := range m.DependsOn {
					quoted = append(quoted, fmt.Sprintf("%q", d))
				}
				w(2, "depends_on: [%s]", strings.Join(quoted, ", "))
			}
			w(1, "},")
		}
		w(0, "]")
	}

	return sb.String()
}

func duration(d time.Duration) string { return d.String() }

func distribution(d string) string {
	if d == "" {
		return "repo"
	}
	return d
}
