package autoload

import (
	"fmt"
)

// DefaultExcludes contains patterns for common temporary/backup files that should be ignored
var DefaultExcludes = []string{
	"**/.#*",   // Emacs lock files
	"**/*~",    // Backup files
	"**/*.bak", // Backup files
	"**/*.swp", // Vim swap files
	"**/*.tmp", // Temporary files
	"**/._*",   // macOS resource forks
}

// DefaultInclude matches every JSON file below the root.
var DefaultInclude = []string{"**/*.json"}

const DefaultDocCacheSize = 256

// Config describes where pipeline files live and how they are loaded.
type Config struct {
	Root         string   `json:"root"                     yaml:"root"                     mapstructure:"root"`
	Include      []string `json:"include"                  yaml:"include"                  mapstructure:"include"                  validate:"required,dive,required"`
	Exclude      []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"        mapstructure:"exclude"                  validate:"dive,required"`
	Strict       bool     `json:"strict"                   yaml:"strict"                   mapstructure:"strict"`
	DocCacheSize int      `json:"doc_cache_size,omitempty" yaml:"doc_cache_size,omitempty" mapstructure:"doc_cache_size"          validate:"min=0"`
}

// NewConfig creates a Config with defaults
func NewConfig() *Config {
	return &Config{
		Root:         ".",
		Include:      append([]string(nil), DefaultInclude...),
		Exclude:      []string{},
		Strict:       false,
		DocCacheSize: DefaultDocCacheSize,
	}
}

// Validate validates the autoload configuration
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("autoload.root is required")
	}
	if len(c.Include) == 0 {
		return fmt.Errorf("autoload.include patterns are required")
	}
	for _, pattern := range c.Include {
		if pattern == "" {
			return fmt.Errorf("empty include pattern is not allowed")
		}
	}
	for _, pattern := range c.Exclude {
		if pattern == "" {
			return fmt.Errorf("empty exclude pattern is not allowed")
		}
	}
	if c.DocCacheSize < 0 {
		return fmt.Errorf("autoload.doc_cache_size must not be negative")
	}
	return nil
}

// GetAllExcludes returns the combined list of default and user-defined excludes
func (c *Config) GetAllExcludes() []string {
	all := make([]string, 0, len(DefaultExcludes)+len(c.Exclude))
	all = append(all, DefaultExcludes...)
	return append(all, c.Exclude...)
}
