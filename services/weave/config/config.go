// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the weave service configuration.
//
// Configuration is layered: the embedded default.yaml, then an optional
// user YAML file, then WEAVE_* environment variables. The result is
// validated before it is returned.
//
// Thread Safety:
//
//	Config values are plain data; treat a loaded Config as read-only.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Constants
// =============================================================================

// MaxConfigFileSize is the maximum accepted config file size (1MB).
const MaxConfigFileSize = 1024 * 1024

// Environment variables that override file values.
const (
	EnvHTTPPort       = "WEAVE_HTTP_PORT"
	EnvStorageBackend = "WEAVE_STORAGE_BACKEND"
	EnvStoragePath    = "WEAVE_STORAGE_PATH"
	EnvLogLevel       = "WEAVE_LOG_LEVEL"
	EnvMaxConcurrency = "WEAVE_MAX_CONCURRENCY"
	EnvWatchRoot      = "WEAVE_WATCH_ROOT"
)

// Storage backends.
const (
	BackendNone   = "none"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ErrInvalidConfig is returned when configuration fails to parse or validate.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed default.yaml
var defaultYAML []byte

var validate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the root configuration document.
type Config struct {
	Graph     GraphConfig     `yaml:"graph"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// RulesFile is an optional YAML file of declarative rules.
	RulesFile string `yaml:"rules_file"`
}

// GraphConfig describes the graph being maintained.
type GraphConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Version  string `yaml:"version"`
	RootPath string `yaml:"root_path"`
}

// EngineConfig configures the rule dispatcher.
type EngineConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency" validate:"min=1,max=1024"`
	DefaultTimeout time.Duration `yaml:"default_timeout" validate:"min=1ms"`
	LogCapacity    int           `yaml:"log_capacity" validate:"min=1"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend          string        `yaml:"backend" validate:"oneof=none badger sqlite"`
	Path             string        `yaml:"path" validate:"required_unless=Backend none"`
	SnapshotName     string        `yaml:"snapshot_name" validate:"required"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" validate:"gte=0"`
}

// WatcherConfig configures the documentation file watcher.
type WatcherConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Root       string        `yaml:"root" validate:"required_if=Enabled true"`
	Debounce   time.Duration `yaml:"debounce" validate:"gte=0"`
	Extensions []string      `yaml:"extensions"`
	Ignore     []string      `yaml:"ignore"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Format is text, json, or auto (JSON unless stderr is a terminal).
	Format string `yaml:"format" validate:"oneof=text json auto"`
	Dir    string `yaml:"dir"`
}

// TelemetryConfig configures OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("%w: embedded defaults: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Load builds the configuration from defaults, path and the process environment.
//
// Inputs:
//
//	path - Optional YAML file. Empty skips the file layer.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - ErrInvalidConfig for parse or validation failures, or the
//	file read error.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrInvalidConfig, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return data, nil
}

// applyEnv overlays WEAVE_* environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvHTTPPort, v)
		}
		c.Server.Port = port
	}
	if v := getenv(EnvStorageBackend); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := getenv(EnvStoragePath); v != "" {
		c.Storage.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvMaxConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvMaxConcurrency, v)
		}
		c.Engine.MaxConcurrency = n
	}
	if v := getenv(EnvWatchRoot); v != "" {
		c.Watcher.Root = v
		c.Watcher.Enabled = true
	}
	return nil
}

// expandPaths resolves a leading ~ in filesystem paths.
func (c *Config) expandPaths() {
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Watcher.Root = expandHome(c.Watcher.Root)
	c.Logging.Dir = expandHome(c.Logging.Dir)
	c.RulesFile = expandHome(c.RulesFile)
	c.Graph.RootPath = expandHome(c.Graph.RootPath)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
