package config

import (
	"context"
	"time"
)

// Config represents the complete configuration for taskref.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Resolver ResolverConfig `koanf:"resolver" validate:"required"`
	Autoload AutoloadConfig `koanf:"autoload" validate:"required"`
	Runtime  RuntimeConfig  `koanf:"runtime"  validate:"required"`
	CLI      CLIConfig      `koanf:"cli"`
}

// ResolverConfig bounds expression evaluation.
type ResolverConfig struct {
	MaxExpansion   int `koanf:"max_expansion"    validate:"min=1" env:"TASKREF_RESOLVER_MAX_EXPANSION"    flag:"max-expansion"`
	ParseCacheSize int `koanf:"parse_cache_size" validate:"min=0" env:"TASKREF_RESOLVER_PARSE_CACHE_SIZE" flag:"parse-cache-size"`
}

// AutoloadConfig locates the pipeline files.
type AutoloadConfig struct {
	Root         string        `koanf:"root"           validate:"required"           env:"TASKREF_AUTOLOAD_ROOT"           flag:"root"`
	Include      []string      `koanf:"include"        validate:"required,dive,glob" env:"TASKREF_AUTOLOAD_INCLUDE"        flag:"include"`
	Exclude      []string      `koanf:"exclude"        validate:"dive,glob"          env:"TASKREF_AUTOLOAD_EXCLUDE"        flag:"exclude"`
	Strict       bool          `koanf:"strict"                                       env:"TASKREF_AUTOLOAD_STRICT"         flag:"strict"`
	DocCacheSize int           `koanf:"doc_cache_size" validate:"min=0"              env:"TASKREF_AUTOLOAD_DOC_CACHE_SIZE"`
	Debounce     time.Duration `koanf:"debounce"       validate:"min=0"              env:"TASKREF_AUTOLOAD_DEBOUNCE"       flag:"debounce"`
}

// RuntimeConfig contains logging behavior.
type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"  validate:"oneof=debug info warn error disabled" env:"TASKREF_LOG_LEVEL"  flag:"log-level"`
	LogJSON   bool   `koanf:"log_json"                                                   env:"TASKREF_LOG_JSON"   flag:"log-json"`
	LogSource bool   `koanf:"log_source"                                                 env:"TASKREF_LOG_SOURCE" flag:"log-source"`
}

// CLIConfig contains command line presentation settings.
type CLIConfig struct {
	Format  string `koanf:"format"   validate:"oneof=pretty json text" env:"TASKREF_CLI_FORMAT"   flag:"format"`
	NoColor bool   `koanf:"no_color"                                   env:"TASKREF_CLI_NO_COLOR" flag:"no-color"`
	Workers int    `koanf:"workers"  validate:"min=1"                  env:"TASKREF_CLI_WORKERS"  flag:"workers"`
}

// Service defines the configuration service interface.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	GetSource(key string) SourceType
}

// Source represents a configuration source.
type Source interface {
	// Load returns the configuration data as a nested map.
	Load() (map[string]any, error)
	// Watch invokes callback when the source changes. Sources that do not
	// change at runtime return nil without calling it.
	Watch(ctx context.Context, callback func()) error
	Type() SourceType
	Close() error
}

// SourceType identifies the configuration source type.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceDotEnv  SourceType = "dotenv"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

// Metadata records which source provided each key.
type Metadata struct {
	Sources  map[string]SourceType
	LoadedAt time.Time
}

const (
	DefaultMaxExpansion   = 100000
	DefaultParseCacheSize = 4096
	DefaultDocCacheSize   = 256
	DefaultDebounce       = 100 * time.Millisecond
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MaxExpansion:   DefaultMaxExpansion,
			ParseCacheSize: DefaultParseCacheSize,
		},
		Autoload: AutoloadConfig{
			Root:         ".",
			Include:      []string{"**/*.json"},
			Exclude:      []string{},
			DocCacheSize: DefaultDocCacheSize,
			Debounce:     DefaultDebounce,
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
		CLI: CLIConfig{
			Format:  "pretty",
			Workers: 4,
		},
	}
}
