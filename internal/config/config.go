// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Run inputs
	DocumentRef string `json:"document_ref,omitempty"` // Reference to the base resume document
	Role        string `json:"role,omitempty"`         // Target role to optimize for
	Location    string `json:"location,omitempty"`     // Target location
	Mode        string `json:"mode,omitempty"`         // Target work mode (remote, hybrid, onsite)

	// Orchestration knobs
	ManualMode      bool `json:"manual_mode,omitempty"`       // Pause at every stage boundary
	MaxRounds       int  `json:"max_rounds,omitempty"`        // Refinement round budget
	PassThreshold   int  `json:"pass_threshold,omitempty"`    // Overall score that exits the refinement loop
	MaxForcedPasses int  `json:"max_forced_passes,omitempty"` // Forced pass budget (0 = uncapped)

	// Behavior
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	Verbose     bool   `json:"verbose,omitempty"`      // Print detailed progress information
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required fields
// are checked by CLI flag validation after merging, not here.
func (c *Config) Validate() error {
	if c.MaxRounds < 0 {
		return fmt.Errorf("config error: 'max_rounds' must be non-negative")
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return fmt.Errorf("config error: 'pass_threshold' must be in [0, 100]")
	}
	if c.MaxForcedPasses < 0 {
		return fmt.Errorf("config error: 'max_forced_passes' must be non-negative")
	}

	switch c.Mode {
	case "", "remote", "hybrid", "onsite":
	default:
		return fmt.Errorf("config error: 'mode' must be one of remote, hybrid, onsite")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This applies config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DocumentRef == "" {
		result.DocumentRef = defaults.DocumentRef
	}
	if result.Role == "" {
		result.Role = defaults.Role
	}
	if result.Location == "" {
		result.Location = defaults.Location
	}
	if result.Mode == "" {
		result.Mode = defaults.Mode
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	if result.MaxRounds == 0 {
		result.MaxRounds = defaults.MaxRounds
	}
	if result.PassThreshold == 0 {
		result.PassThreshold = defaults.PassThreshold
	}
	if result.MaxForcedPasses == 0 {
		result.MaxForcedPasses = defaults.MaxForcedPasses
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
