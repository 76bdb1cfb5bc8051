package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nesting levels so that keys containing underscores survive,
// e.g. DHAFNCK_VISION__CONTEXT_ENFORCEMENT__ENABLED=false.
const EnvPrefix = "DHAFNCK_"

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		fileMap, err := loadYAMLFile(path)
		if err != nil {
			return nil, err
		}
		if len(fileMap) > 0 {
			if err := k.Load(confmap.Provider(fileMap, "."), nil); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAMLFile reads a YAML config file into a nested map. A missing file
// is not an error so deployments can rely on defaults plus environment.
func loadYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return filterNilValues(raw), nil
}

// filterNilValues recursively removes nil values so the file source never
// clobbers defaults with explicit nulls.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			filtered := filterNilValues(nested)
			if len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}
