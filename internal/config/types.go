// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/natrelease/natrelease/internal/artifact"
)

// Environment variables read as overrides.
const (
	EnvUsername        = "OSSRH_USER"
	EnvPassword        = "OSSRH_PASSWORD"
	EnvStagingProfile  = "STAGING_PROFILE_ID"
	EnvSigningKey      = "SIGNING_KEY"
	EnvSigningKeyAlt   = "GPG_KEY"
	EnvSigningPassword = "SIGNING_PASSWORD"
	EnvTarget          = "TARGET"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidModule is the sentinel error wrapped by InvalidModuleError.
	ErrInvalidModule = errors.New("invalid module")
	// ErrInvalidSetting is the sentinel error wrapped by InvalidSettingError.
	ErrInvalidSetting = errors.New("invalid setting")
)

type (
	// Config is the complete release configuration.
	Config struct {
		// Target is the compiler target triplet. Empty selects the default
		// linux x86-64 target.
		Target  string         `json:"target" mapstructure:"target"`
		Project ProjectConfig  `json:"project" mapstructure:"project"`
		Natives NativesConfig  `json:"natives" mapstructure:"natives"`
		Build   BuildConfig    `json:"build" mapstructure:"build"`
		Staging StagingConfig  `json:"staging" mapstructure:"staging"`
		Index   IndexConfig    `json:"index" mapstructure:"index"`
		Remote  RemoteConfig   `json:"remote" mapstructure:"remote"`
		Signing SigningConfig  `json:"signing" mapstructure:"signing"`
		Modules []ModuleConfig `json:"modules" mapstructure:"modules"`

		// Source is the file the configuration was loaded from, if any.
		Source string `json:"-" mapstructure:"-"`
	}

	// ProjectConfig holds coordinates and POM metadata shared by all modules.
	ProjectConfig struct {
		Group string `json:"group" mapstructure:"group"`
		// Version is the release version. Empty reads package.version from
		// CargoManifest.
		Version       string            `json:"version" mapstructure:"version"`
		CargoManifest string            `json:"cargo_manifest" mapstructure:"cargo_manifest"`
		Description   string            `json:"description" mapstructure:"description"`
		URL           string            `json:"url" mapstructure:"url"`
		SCM           SCMConfig         `json:"scm" mapstructure:"scm"`
		Licenses      []LicenseConfig   `json:"licenses" mapstructure:"licenses"`
		Developers    []DeveloperConfig `json:"developers" mapstructure:"developers"`
	}

	// SCMConfig is the POM scm section.
	SCMConfig struct {
		URL                 string `json:"url" mapstructure:"url"`
		Connection          string `json:"connection" mapstructure:"connection"`
		DeveloperConnection string `json:"developer_connection" mapstructure:"developer_connection"`
	}

	// LicenseConfig is one POM license.
	LicenseConfig struct {
		Name         string `json:"name" mapstructure:"name"`
		URL          string `json:"url" mapstructure:"url"`
		Distribution string `json:"distribution" mapstructure:"distribution"`
	}

	// DeveloperConfig is one POM developer.
	DeveloperConfig struct {
		ID    string `json:"id" mapstructure:"id"`
		Name  string `json:"name" mapstructure:"name"`
		Email string `json:"email" mapstructure:"email"`
	}

	// NativesConfig locates compiler output.
	NativesConfig struct {
		// SourceDir contains one <triplet>/release/ directory per target.
		SourceDir string `json:"source_dir" mapstructure:"source_dir"`
	}

	// BuildConfig configures the build task.
	BuildConfig struct {
		// Script is POSIX shell run by the embedded interpreter. Empty means
		// compilation happens outside the tool.
		Script string `json:"script" mapstructure:"script"`
		Dir    string `json:"dir" mapstructure:"dir"`
	}

	// StagingConfig configures the local staging repository.
	StagingConfig struct {
		Dir         string `json:"dir" mapstructure:"dir"`
		Concurrency int    `json:"concurrency" mapstructure:"concurrency"`
	}

	// IndexConfig configures the publish gate probe.
	IndexConfig struct {
		URL     string        `json:"url" mapstructure:"url"`
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// RemoteConfig configures the staging service. Username, Password and
	// ProfileID must all be set for uploads to happen.
	RemoteConfig struct {
		URL            string        `json:"url" mapstructure:"url"`
		ProfileID      string        `json:"profile_id" mapstructure:"profile_id"`
		Username       string        `json:"username" mapstructure:"username"`
		Password       string        `json:"password" mapstructure:"password"`
		ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
		ClientTimeout  time.Duration `json:"client_timeout" mapstructure:"client_timeout"`
		PollInterval   time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
		MaxAttempts    int           `json:"max_attempts" mapstructure:"max_attempts"`
	}

	// SigningConfig holds optional OpenPGP key material.
	SigningConfig struct {
		// Key is an armored private key.
		Key string `json:"key" mapstructure:"key"`
		// KeyFile is read when Key is empty.
		KeyFile  string `json:"key_file" mapstructure:"key_file"`
		Password string `json:"password" mapstructure:"password"`
	}

	// ModuleConfig describes one published module.
	ModuleConfig struct {
		Name       string `json:"name" mapstructure:"name"`
		ArtifactID string `json:"artifact_id" mapstructure:"artifact_id"`
		// Platform marks a module whose artifact id carries the platform tag
		// and whose jar embeds the current platform's natives.
		Platform     bool   `json:"platform" mapstructure:"platform"`
		ResourcesDir string `json:"resources_dir" mapstructure:"resources_dir"`
		// Companions maps a classifier (sources, javadoc) to the directory
		// archived as <name>-<version>-<classifier>.jar.
		Companions map[string]string `json:"companions" mapstructure:"companions"`
		DependsOn  []string          `json:"depends_on" mapstructure:"depends_on"`
	}

	// InvalidConfigError aggregates validation failures.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// InvalidModuleError reports a bad module entry.
	InvalidModuleError struct {
		Name   string
		Reason string
	}

	// InvalidSettingError reports a bad scalar setting.
	InvalidSettingError struct {
		Field  string
		Reason string
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{CargoManifest: "Cargo.toml"},
		Natives: NativesConfig{SourceDir: "target"},
		Staging: StagingConfig{Dir: "build/staging-deploy", Concurrency: 4},
		Index: IndexConfig{
			URL:     "https://repo1.maven.org/maven2",
			Timeout: 30 * time.Second,
		},
		Remote: RemoteConfig{
			URL:            "https://s01.oss.sonatype.org/service/local",
			ConnectTimeout: time.Minute,
			ClientTimeout:  10 * time.Minute,
			PollInterval:   5 * time.Second,
			MaxAttempts:    100,
		},
	}
}

// HasCredentials reports whether all three staging credentials are set.
func (r RemoteConfig) HasCredentials() bool {
	return len(r.MissingCredentials()) == 0
}

// MissingCredentials names the environment variables of unset credentials.
func (r RemoteConfig) MissingCredentials() []string {
	var missing []string
	if r.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if r.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if r.ProfileID == "" {
		missing = append(missing, EnvStagingProfile)
	}
	return missing
}

// HasKey reports whether signing key material is configured.
func (s SigningConfig) HasKey() bool {
	return strings.TrimSpace(s.Key) != "" || s.KeyFile != ""
}

// ArmoredKey returns Key, or the contents of KeyFile.
func (s SigningConfig) ArmoredKey() (string, error) {
	if strings.TrimSpace(s.Key) != "" {
		return s.Key, nil
	}
	if s.KeyFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.KeyFile)
	if err != nil {
		return "", fmt.Errorf("reading signing key file: %w", err)
	}
	return string(data), nil
}

// Module returns the module named name.
func (c *Config) Module(name string) (ModuleConfig, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleConfig{}, false
}

// ModuleNames returns the module names in declaration order.
func (c *Config) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		names = append(names, m.Name)
	}
	return names
}

// POMInfo converts the project metadata for POM rendering.
func (p ProjectConfig) POMInfo() artifact.POMInfo {
	info := artifact.POMInfo{
		Description: p.Description,
		URL:         p.URL,
		SCM:         artifact.SCM(p.SCM),
	}
	for _, l := range p.Licenses {
		info.Licenses = append(info.Licenses, artifact.License(l))
	}
	for _, d := range p.Developers {
		info.Developers = append(info.Developers, artifact.Developer(d))
	}
	return info
}

// Classifiers returns the companion classifiers in sorted order.
func (m ModuleConfig) Classifiers() []string {
	out := make([]string, 0, len(m.Companions))
	for c := range m.Companions {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// IsValid checks constraints the CUE schema cannot express: module name
// uniqueness, dependency references and numeric bounds.
func (c Config) IsValid() (bool, []error) {
	var errs []error

	if c.Project.Version != "" {
		if err := artifact.ValidateVersion(c.Project.Version); err != nil {
			errs = append(errs, &InvalidSettingError{Field: "project.version", Reason: err.Error()})
		}
	}
	if len(c.Modules) > 0 && strings.TrimSpace(c.Project.Group) == "" {
		errs = append(errs, &InvalidSettingError{Field: "project.group", Reason: "required when modules are declared"})
	}
	if c.Staging.Concurrency < 1 {
		errs = append(errs, &InvalidSettingError{Field: "staging.concurrency", Reason: "must be at least 1"})
	}
	if c.Remote.MaxAttempts < 1 {
		errs = append(errs, &InvalidSettingError{Field: "remote.max_attempts", Reason: "must be at least 1"})
	}
	if c.Remote.PollInterval <= 0 {
		errs = append(errs, &InvalidSettingError{Field: "remote.poll_interval", Reason: "must be positive"})
	}

	names := make(map[string]bool, len(c.Modules))
	artifactIDs := make(map[string]string, len(c.Modules))
	for _, m := range c.Modules {
		if names[m.Name] {
			errs = append(errs, &InvalidModuleError{Name: m.Name, Reason: "duplicate module name"})
		}
		names[m.Name] = true
		if other, ok := artifactIDs[m.ArtifactID]; ok {
			errs = append(errs, &InvalidModuleError{Name: m.Name, Reason: fmt.Sprintf("artifact_id %q already used by %q", m.ArtifactID, other)})
		}
		artifactIDs[m.ArtifactID] = m.Name
		if strings.TrimSpace(m.ArtifactID) == "" {
			errs = append(errs, &InvalidModuleError{Name: m.Name, Reason: "artifact_id is required"})
		}
		if strings.TrimSpace(m.ResourcesDir) == "" {
			errs = append(errs, &InvalidModuleError{Name: m.Name, Reason: "resources_dir is required"})
		}
	}
	for _, m := range c.Modules {
		for _, dep := range m.DependsOn {
			switch {
			case dep == m.Name:
				errs = append(errs, &InvalidModuleError{Name: m.Name, Reason: "depends on itself"})
			case !names[dep]:
				errs = append(errs, &InvalidModuleError{Name: m.Name, Reason: fmt.Sprintf("depends on unknown module %q", dep)})
			}
		}
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func (e *InvalidModuleError) Error() string {
	return fmt.Sprintf("module %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidModule for errors.Is() compatibility.
func (e *InvalidModuleError) Unwrap() error { return ErrInvalidModule }

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidSetting for errors.Is() compatibility.
func (e *InvalidSettingError) Unwrap() error { return ErrInvalidSetting }
