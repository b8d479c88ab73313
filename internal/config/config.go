// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/deep-search/internal/types"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Research subject
	Topic string `json:"topic,omitempty"` // Research topic

	// Credentials
	APIKey       string `json:"api_key,omitempty"`        // Gemini API key
	SearchAPIKey string `json:"search_api_key,omitempty"` // Google Custom Search API key
	SearchCX     string `json:"search_cx,omitempty"`      // Programmable search engine ID

	// Research limits
	MaxDepth      int `json:"max_depth,omitempty"`      // Number of research rounds
	BatchSize     int `json:"batch_size,omitempty"`     // Concurrent queries per round
	MaxResults    int `json:"max_results,omitempty"`    // Search results per query
	SearchTimeout int `json:"search_timeout,omitempty"` // Per-round timeout in seconds

	// Behavior
	Language        string `json:"language,omitempty"`          // Result language preference
	IncludeAcademic bool   `json:"include_academic,omitempty"`  // Bias queries toward academic sources
	SkipEmptyRounds bool   `json:"skip_empty_rounds,omitempty"` // Continue when a whole round fails
	UseBrowser      bool   `json:"use_browser,omitempty"`       // Use headless browser for SPA sites
	Verbose         bool   `json:"verbose,omitempty"`           // Print detailed debug information
	Output          string `json:"output,omitempty"`            // Path to write the session archive JSON
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
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

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("config error: 'max_depth' must be non-negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("config error: 'batch_size' must be non-negative")
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("config error: 'max_results' must be non-negative")
	}
	if c.SearchTimeout < 0 {
		return fmt.Errorf("config error: 'search_timeout' must be non-negative")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Topic == "" {
		result.Topic = defaults.Topic
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.SearchAPIKey == "" {
		result.SearchAPIKey = defaults.SearchAPIKey
	}
	if result.SearchCX == "" {
		result.SearchCX = defaults.SearchCX
	}
	if result.Language == "" {
		result.Language = defaults.Language
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}

	// Int fields: use default if zero
	if result.MaxDepth == 0 {
		result.MaxDepth = defaults.MaxDepth
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}
	if result.MaxResults == 0 {
		result.MaxResults = defaults.MaxResults
	}
	if result.SearchTimeout == 0 {
		result.SearchTimeout = defaults.SearchTimeout
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Settings converts the configuration into research settings, filling any
// remaining zero values with the research defaults.
func (c *Config) Settings() types.ResearchSettings {
	settings := types.DefaultSettings()
	if c.MaxDepth > 0 {
		settings.MaxDepth = c.MaxDepth
	}
	if c.BatchSize > 0 {
		settings.BatchSize = c.BatchSize
	}
	if c.MaxResults > 0 {
		settings.MaxResults = c.MaxResults
	}
	if c.SearchTimeout > 0 {
		settings.SearchTimeout = c.SearchTimeout
	}
	if c.Language != "" {
		settings.Language = c.Language
	}
	settings.IncludeAcademic = c.IncludeAcademic
	settings.SkipEmptyRounds = c.SkipEmptyRounds
	return settings
}
