// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the poll
// history viewer.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_POLLS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file discovery; without either,
// the command runs on [Default] plus its flags.
//
// The file may contain environment-specific sections (development,
// production) that override base values when [Config].Environment
// matches. Production logs JSON unless a format is set explicitly.
//
// ${VAR} and ${VAR:-default} patterns are expanded in path fields
// (the token file and the log file) after loading. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Matrix, History, and Log sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] and [Config.RequireMatrix] -- checks, with
//     every problem joined into one error
package config
