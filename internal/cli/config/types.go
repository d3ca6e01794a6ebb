// Package config provides configuration management for the leapdq CLI.
//
// Configuration is merged from four layers, lowest precedence first:
// built-in defaults, a leapdq.yaml file (searched upward from the working
// directory), LEAPDQ_-prefixed environment variables, and explicitly set
// command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	// StatePath is the state store location: a SQLite file path,
	// ":memory:", or a postgres:// DSN.
	StatePath string `koanf:"state_path"`
	// RulesDir holds YAML rule packs loaded on top of the built-ins.
	RulesDir     string       `koanf:"rules_dir"`
	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output"`
	Server       ServerConfig `koanf:"server"`
	Export       ExportConfig `koanf:"export"`

	// ProjectRoot is the directory relative paths resolve against.
	// Derived during loading, never read from the file.
	ProjectRoot string `koanf:"-"`
}

// ServerConfig tunes the serve command.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	MaxConns        int           `koanf:"max_conns"`
	Watch           bool          `koanf:"watch"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ExportConfig names the engine-wide Gold sinks. An empty field disables
// the corresponding sink.
type ExportConfig struct {
	// Dir receives one gold_<source>.csv per source.
	Dir string `koanf:"dir"`
	// DuckDB is the path of a DuckDB file receiving one gold_<source>
	// table per source.
	DuckDB string `koanf:"duckdb"`
}

// Default configuration values.
const (
	DefaultStateFile       = ".leapdq/state.db"
	DefaultRulesDir        = "rules"
	DefaultOutput          = "auto" // TTY=text, non-TTY=markdown
	DefaultServerPort      = 8765
	DefaultServerMaxConns  = 256
	DefaultShutdownTimeout = 5 * time.Second
)
