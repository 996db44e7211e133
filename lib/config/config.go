// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the editorlink
// bridge.
//
// Configuration is read once at process start and is immutable for the
// process lifetime. Sources, in order of precedence:
//
//  1. EDITORLINK_* environment variables
//  2. a YAML file named by the EDITORLINK_CONFIG environment variable
//     (or an explicit path passed by the command)
//  3. built-in defaults
//
// There is no automatic file discovery: a config file is used only
// when explicitly named. This keeps the effective configuration
// deterministic and auditable.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default wait tuning. These mirror the dispatcher defaults; they are
// restated here so a config file can override them.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultWaitCeiling  = 30 * time.Second
)

// Config is the process-wide bridge configuration.
type Config struct {
	// EndpointSeed overrides the project-root path as the input to the
	// endpoint identity hash. Empty means "derive from the project
	// root".
	EndpointSeed string `yaml:"endpoint_seed"`

	// RunDir is the directory for the endpoint socket. Empty means the
	// platform default (XDG_RUNTIME_DIR or the temp directory).
	RunDir string `yaml:"run_dir"`

	// AuthRequired demands the session token on every request and a
	// matching peer UID on every connection.
	AuthRequired bool `yaml:"auth_required"`

	// LoggingEnabled controls the diagnostic log file. Defaults to
	// true.
	LoggingEnabled bool `yaml:"logging_enabled"`

	// PollInterval is the liveness poll cadence while a request waits
	// on the host loop.
	PollInterval Duration `yaml:"poll_interval"`

	// WaitCeiling is the hard upper bound on waiting for the host loop
	// before a request times out.
	WaitCeiling Duration `yaml:"wait_ceiling"`
}

// Duration wraps time.Duration with YAML support for values like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LoggingEnabled: true,
		PollInterval:   Duration(DefaultPollInterval),
		WaitCeiling:    Duration(DefaultWaitCeiling),
	}
}

// Load assembles the process configuration. path names a YAML file to
// load; when empty, the EDITORLINK_CONFIG environment variable is
// consulted, and when that is also empty no file is read. Environment
// variables are applied last.
func Load(path string) (Config, error) {
	configuration := Default()

	if path == "" {
		path = os.Getenv("EDITORLINK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&configuration); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvironment(&configuration); err != nil {
		return Config{}, err
	}

	if configuration.PollInterval <= 0 {
		configuration.PollInterval = Duration(DefaultPollInterval)
	}
	if configuration.WaitCeiling <= 0 {
		configuration.WaitCeiling = Duration(DefaultWaitCeiling)
	}
	return configuration, nil
}

// applyEnvironment overlays EDITORLINK_* variables onto the
// configuration.
func applyEnvironment(configuration *Config) error {
	if seed, ok := os.LookupEnv("EDITORLINK_ENDPOINT_SEED"); ok {
		configuration.EndpointSeed = seed
	}
	if runDir, ok := os.LookupEnv("EDITORLINK_RUN_DIR"); ok {
		configuration.RunDir = runDir
	}
	if raw, ok := os.LookupEnv("EDITORLINK_AUTH_REQUIRED"); ok {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("EDITORLINK_AUTH_REQUIRED: %w", err)
		}
		configuration.AuthRequired = value
	}
	if raw, ok := os.LookupEnv("EDITORLINK_LOGGING"); ok {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("EDITORLINK_LOGGING: %w", err)
		}
		configuration.LoggingEnabled = value
	}
	if raw, ok := os.LookupEnv("EDITORLINK_POLL_INTERVAL"); ok {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("EDITORLINK_POLL_INTERVAL: %w", err)
		}
		configuration.PollInterval = Duration(value)
	}
	if raw, ok := os.LookupEnv("EDITORLINK_WAIT_CEILING"); ok {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("EDITORLINK_WAIT_CEILING: %w", err)
		}
		configuration.WaitCeiling = Duration(value)
	}
	return nil
}
