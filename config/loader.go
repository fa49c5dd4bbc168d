package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/alusync/errors"
)

// Loader handles configuration loading with layers and overrides. Layers are
// merged key by key over Default(), so a layer only needs the keys it changes.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader reading ALUSYNC_* overrides.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "ALUSYNC",
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load merges defaults, every layer in order, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", "load "+path)
		}
		merged = deepMergeMaps(merged, raw)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode merged config")
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readLayerFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		if err = checkJSONNesting(data); err == nil {
			err = json.Unmarshal(data, &raw)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrParsingFailed, path, err)
	}
	return raw, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	return m, json.Unmarshal(data, &m)
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
// Nil override values are ignored.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := func(suffix string) string {
		val := l.getenv(l.envPrefix + "_" + suffix)
		if len(val) > maxEnvVarLen {
			return ""
		}
		return val
	}

	if val := env("HUB_LISTEN"); val != "" {
		cfg.Hub.Listen = val
	}
	if val := env("EVENT_LOG_CAPACITY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_EVENT_LOG_CAPACITY: %v", errors.ErrInvalidConfig, l.envPrefix, err)
		}
		cfg.Hub.EventLogCapacity = n
	}
	if val := env("HUB_URL"); val != "" {
		cfg.Client.HubURL = val
	}
	if val := env("RECONNECT_DELAY"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_RECONNECT_DELAY: %v", errors.ErrInvalidConfig, l.envPrefix, err)
		}
		cfg.Client.ReconnectDelay = Duration(d)
	}
	if val := env("NATS_URL"); val != "" {
		cfg.Mirror.NATSURL = val
	}
	if val := env("BRIDGE_BACKEND"); val != "" {
		cfg.Bridge.Backend = val
	}
	return nil
}

// LoadFile is a convenience for a validated load of a single optional file.
// An empty path loads defaults plus environment overrides.
func LoadFile(path string) (*Config, error) {
	l := NewLoader()
	if path != "" {
		l.AddLayer(path)
	}
	l.EnableValidation(true)
	return l.Load()
}
