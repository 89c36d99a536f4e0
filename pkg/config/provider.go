package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/structs"
	"gopkg.in/yaml.v3"
)

// defaultProvider implements Source interface for default configuration values.
type defaultProvider struct{}

// NewDefaultProvider creates a new default configuration source.
func NewDefaultProvider() Source {
	return &defaultProvider{}
}

// Load returns the default configuration values.
func (d *defaultProvider) Load() (map[string]any, error) {
	return structs.Provider(Default(), "koanf").Read()
}

func (d *defaultProvider) Watch(_ context.Context, _ func()) error {
	return nil
}

func (d *defaultProvider) Type() SourceType {
	return SourceDefault
}

func (d *defaultProvider) Close() error {
	return nil
}

// cliProvider implements Source interface for CLI flags.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider creates a new CLI flags configuration source. Keys are
// flag names; unknown flags are ignored.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{
		flags: flags,
	}
}

// Load returns the CLI flags as configuration data.
func (c *cliProvider) Load() (map[string]any, error) {
	config := make(map[string]any)
	flagToPath := GenerateFlagToConfigMap()
	for key, value := range c.flags {
		if path, ok := flagToPath[key]; ok {
			if err := setNested(config, path, value); err != nil {
				return nil, fmt.Errorf("failed to set CLI flag %s: %w", key, err)
			}
		}
	}
	return config, nil
}

func (c *cliProvider) Watch(_ context.Context, _ func()) error {
	return nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

func (c *cliProvider) Close() error {
	return nil
}

// setNested sets a value in a nested map structure using dot notation.
// It returns an error if a path conflict is encountered.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := m
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// dotenvProvider reads prefixed variables from a .env file.
type dotenvProvider struct {
	path string
}

// NewDotEnvProvider creates a source for a .env file. A missing file
// contributes nothing.
func NewDotEnvProvider(path string) Source {
	return &dotenvProvider{path: path}
}

func (d *dotenvProvider) Load() (map[string]any, error) {
	vars, err := godotenv.Read(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read dotenv file: %w", err)
	}
	envToPath := GenerateEnvToConfigMap()
	config := make(map[string]any)
	for key, value := range vars {
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path, ok := envToPath[key]
		if !ok {
			path = transformEnvKey(key)
		}
		if err := setNested(config, path, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return config, nil
}

func (d *dotenvProvider) Watch(_ context.Context, _ func()) error {
	return nil
}

func (d *dotenvProvider) Type() SourceType {
	return SourceDotEnv
}

func (d *dotenvProvider) Close() error {
	return nil
}

// yamlProvider implements Source interface for YAML files.
type yamlProvider struct {
	path      string
	watcher   *Watcher
	watcherMu sync.Mutex
	closeOnce sync.Once
}

// NewYAMLProvider creates a new YAML file configuration source.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{
		path: path,
	}
}

// Load reads configuration from a YAML file. A missing file contributes nothing.
func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

// filterNilValues recursively removes nil values from a map
// This prevents koanf from overriding existing values with nil
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nestedMap, ok := v.(map[string]any); ok {
			filtered := filterNilValues(nestedMap)
			if len(filtered) > 0 {
				result[k] = filtered
			}
		} else {
			result[k] = v
		}
	}
	return result
}

// Watch calls callback when the YAML file is written, until ctx is done.
func (y *yamlProvider) Watch(ctx context.Context, callback func()) error {
	y.watcherMu.Lock()
	defer y.watcherMu.Unlock()
	if y.watcher == nil {
		watcher, err := NewWatcher(ctx)
		if err != nil {
			return err
		}
		y.watcher = watcher
	}
	return y.watcher.Add(y.path, func() {
		if ctx.Err() == nil {
			callback()
		}
	})
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// Close releases the file watcher, if any.
func (y *yamlProvider) Close() error {
	var closeErr error
	y.closeOnce.Do(func() {
		y.watcherMu.Lock()
		defer y.watcherMu.Unlock()
		if y.watcher != nil {
			closeErr = y.watcher.Close()
			y.watcher = nil
		}
	})
	return closeErr
}
