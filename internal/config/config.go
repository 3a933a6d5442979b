// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/natrelease/natrelease/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "natrelease"
	// ConfigFileName is the default config file looked up in the working directory.
	ConfigFileName = "natrelease.cue"

	// maxConfigFileSize rejects configuration files over 1 MiB.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// loadWithOptions reads defaults, the optional CUE file and environment
// overrides into a fresh Viper instance and decodes the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	path, explicit := opts.ConfigFilePath, opts.ConfigFilePath != ""
	if !explicit {
		path = filepath.Join(opts.WorkDir, ConfigFileName)
	}

	resolvedPath := ""
	switch {
	case fileExists(path):
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'natrelease config init' to write a starter file").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case explicit:
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Run 'natrelease config init' to write a starter file").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = resolvedPath

	if valid, errs := cfg.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Module names and artifact ids must be unique").
			WithSuggestion("depends_on may only name other declared modules").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("target", d.Target)
	v.SetDefault("project.cargo_manifest", d.Project.CargoManifest)
	v.SetDefault("natives.source_dir", d.Natives.SourceDir)
	v.SetDefault("staging.dir", d.Staging.Dir)
	v.SetDefault("staging.concurrency", d.Staging.Concurrency)
	v.SetDefault("index.url", d.Index.URL)
	v.SetDefault("index.timeout", d.Index.Timeout)
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.connect_timeout", d.Remote.ConnectTimeout)
	v.SetDefault("remote.client_timeout", d.Remote.ClientTimeout)
	v.SetDefault("remote.poll_interval", d.Remote.PollInterval)
	v.SetDefault("remote.max_attempts", d.Remote.MaxAttempts)
}

func bindEnv(v *viper.Viper) error {
	bindings := [][]string{
		{"remote.username", EnvUsername},
		{"remote.password", EnvPassword},
		{"remote.profile_id", EnvStagingProfile},
		{"signing.key", EnvSigningKey, EnvSigningKeyAlt},
		{"signing.password", EnvSigningPassword},
		{"target", EnvTarget},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("binding %s: %w", b[0], err)
		}
	}
	return nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema and merges its contents into Viper. Concrete(false) is used because
// every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError renders every CUE error as "<file>: <path>: <message>",
// with list indices written as [n].
func formatCUEError(err error, filePath string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		p := formatCUEPath(cueerrors.Path(e))
		msg := e.Error()
		if p != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, p), ":"))
			msg = p + ": " + msg
		}
		lines = append(lines, msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

func formatCUEPath(path []string) string {
	var sb strings.Builder
	for i, part := range path {
		if i > 0 && strings.Trim(part, "0123456789") == "" {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
