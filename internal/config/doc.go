// SPDX-License-Identifier: MPL-2.0

// Package config loads the release configuration using Viper with CUE as the
// file format.
//
// The configuration is read from natrelease.cue in the working directory (or
// an explicit --config path), validated against the embedded CUE schema
// (config_schema.cue) and merged over built-in defaults. Repository
// credentials, signing material and the build target can be supplied through
// environment variables so that CI secrets never live in the file.
//
// The loaded *Config is read-only for the duration of a run.
package config
