package config

import (
	"fmt"
	"os"
	"strings"
)

// validOutputs are the accepted values for the output setting.
var validOutputs = map[string]bool{
	"auto":     true,
	"text":     true,
	"markdown": true,
	"md":       true,
	"json":     true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if !validOutputs[strings.ToLower(c.OutputFormat)] {
		return fmt.Errorf("invalid output format %q (want auto, text, markdown or json)", c.OutputFormat)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxConns < 1 {
		return fmt.Errorf("server.max_conns must be at least 1, got %d", c.Server.MaxConns)
	}

	// Rules directory existence is checked per command, so that help
	// and init work in an empty directory.
	return nil
}

// ValidateRulesDir checks that the rules directory exists.
func (c *Config) ValidateRulesDir() error {
	if _, err := os.Stat(c.RulesDir); os.IsNotExist(err) {
		return fmt.Errorf("rules directory does not exist: %s\nHint: Create the directory or use --rules-dir to specify a different path", c.RulesDir)
	}
	return nil
}
