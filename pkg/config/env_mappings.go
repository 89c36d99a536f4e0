package config

import (
	"reflect"
	"sync"
)

// EnvPrefix is shared by every environment variable read by taskref.
const EnvPrefix = "TASKREF_"

// EnvMapping represents a mapping between environment variable and config path
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

// FlagMapping represents a mapping between a CLI flag and config path
type FlagMapping struct {
	Flag       string
	ConfigPath string
}

var (
	cachedEnvMappings  []EnvMapping
	cachedFlagMappings []FlagMapping
	mappingsOnce       sync.Once
)

func loadMappings() {
	mappingsOnce.Do(func() {
		cfg := &Config{}
		extractMappings(reflect.TypeOf(cfg).Elem(), "")
	})
}

// GenerateEnvMappings generates environment variable mappings from config struct tags
func GenerateEnvMappings() []EnvMapping {
	loadMappings()
	return cachedEnvMappings
}

// GenerateFlagMappings generates CLI flag mappings from config struct tags
func GenerateFlagMappings() []FlagMapping {
	loadMappings()
	return cachedFlagMappings
}

// extractMappings recursively extracts env and flag mappings from struct fields
func extractMappings(t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		configPath := koanfTag
		if prefix != "" {
			configPath = prefix + "." + koanfTag
		}
		if envTag := field.Tag.Get("env"); envTag != "" && envTag != "-" {
			cachedEnvMappings = append(cachedEnvMappings, EnvMapping{EnvVar: envTag, ConfigPath: configPath})
		}
		if flagTag := field.Tag.Get("flag"); flagTag != "" && flagTag != "-" {
			cachedFlagMappings = append(cachedFlagMappings, FlagMapping{Flag: flagTag, ConfigPath: configPath})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			extractMappings(field.Type, configPath)
		}
	}
}

// GenerateEnvToConfigMap generates a map from env var to config path
func GenerateEnvToConfigMap() map[string]string {
	mappings := GenerateEnvMappings()
	result := make(map[string]string, len(mappings))
	for _, m := range mappings {
		result[m.EnvVar] = m.ConfigPath
	}
	return result
}

// GenerateFlagToConfigMap generates a map from flag name to config path
func GenerateFlagToConfigMap() map[string]string {
	mappings := GenerateFlagMappings()
	result := make(map[string]string, len(mappings))
	for _, m := range mappings {
		result[m.Flag] = m.ConfigPath
	}
	return result
}

// GetEnvVarForConfigPath returns the environment variable for a given config path
func GetEnvVarForConfigPath(configPath string) string {
	for _, m := range GenerateEnvMappings() {
		if m.ConfigPath == configPath {
			return m.EnvVar
		}
	}
	return ""
}
