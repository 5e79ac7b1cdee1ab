// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads tripgraph settings from defaults, YAML files,
// TRIPGRAPH_* environment variables and command line overrides, in that
// order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRIPGRAPH_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LLM       LLMConfig       `koanf:"llm"`
	Search    SearchConfig    `koanf:"search"`
	Engine    EngineConfig    `koanf:"engine"`
	Store     StoreConfig     `koanf:"store"`
	Incident  IncidentConfig  `koanf:"incident"`
	Guard     GuardConfig     `koanf:"guard"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string            `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string            `koanf:"otlp_endpoint"`
	OTLPInsecure bool              `koanf:"otlp_insecure"`
	OTLPTimeout  time.Duration     `koanf:"otlp_timeout"`
	OTLPHeaders  map[string]string `koanf:"otlp_headers"`
	// PrometheusAddr serves /metrics when set.
	PrometheusAddr string `koanf:"prometheus_addr"`
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"` // groq, openai, anthropic, ollama
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	Retries     int           `koanf:"retries"`
}

type SearchConfig struct {
	Provider      string        `koanf:"provider"` // tavily, vector, none
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	MaxResults    int           `koanf:"max_results"`
	Timeout       time.Duration `koanf:"timeout"`
	QdrantAddr    string        `koanf:"qdrant_addr"`
	Collection    string        `koanf:"collection"`
	EmbedderURL   string        `koanf:"embedder_url"`
	EmbedderModel string        `koanf:"embedder_model"`
	Threshold     float64       `koanf:"threshold"`
}

type EngineConfig struct {
	MaxSupersteps  int           `koanf:"max_supersteps"`
	MaxConcurrency int           `koanf:"max_concurrency"`
	NodeTimeout    time.Duration `koanf:"node_timeout"`
	// Definition optionally replaces the built-in travel topology.
	Definition string `koanf:"definition"`
}

type StoreConfig struct {
	Driver    string        `koanf:"driver"` // memory, sqlite, redis
	DSN       string        `koanf:"dsn"`
	RedisAddr string        `koanf:"redis_addr"`
	TTL       time.Duration `koanf:"ttl"`
	Audit     bool          `koanf:"audit"`
}

// GuardConfig screens messages for prompt injection and masks passport and
// card numbers in answers.
type GuardConfig struct {
	Enabled            bool    `koanf:"enabled"`
	InjectionThreshold float64 `koanf:"injection_threshold"`
	MaskPII            bool    `koanf:"mask_pii"`
}

type IncidentConfig struct {
	Driver string `koanf:"driver"` // file, sqlite
	Path   string `koanf:"path"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.format": "text",

		"telemetry.exporter":     "none",
		"telemetry.otlp_timeout": "10s",

		"llm.provider":    "groq",
		"llm.model":       "llama-3.1-8b-instant",
		"llm.temperature": 0.2,
		"llm.timeout":     "60s",
		"llm.retries":     2,

		"search.provider":       "tavily",
		"search.max_results":    5,
		"search.timeout":        "20s",
		"search.qdrant_addr":    "localhost:6334",
		"search.collection":     "travel_kb",
		"search.embedder_url":   "http://localhost:11434",
		"search.embedder_model": "nomic-embed-text",
		"search.threshold":      0.5,

		"engine.max_supersteps": 25,

		"store.driver":     "memory",
		"store.dsn":        "tripgraph.db",
		"store.redis_addr": "localhost:6379",
		"store.ttl":        "24h",

		"incident.driver": "file",
		"incident.path":   "emergency_logs.json",

		"guard.enabled":  true,
		"guard.mask_pii": true,
	}
}

// Load reads the configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile loads path and then, when profile is set, the sibling
// profile file (config.dev.yaml for config.yaml and profile "dev").
func LoadWithProfile(path, profile string) (*Config, error) {
	k, err := load(path, profile)
	if err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// LoadWithCLI loads configuration using command line arguments. It
// understands --config <path>, --profile <name> (alias --env) and repeated
// --set key=value overrides, which win over every other source. Other
// arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	k, err := load(opts.path, opts.profile)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(k, opts.sets); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// profileConfigPath returns the profile file for path, or "" when it does
// not exist.
func profileConfigPath(path, profile string) string {
	if path == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(path)
	candidate := strings.TrimSuffix(path, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func load(path, profile string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if p := profileConfigPath(path, profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", p, err)
			}
		}
	}

	// TRIPGRAPH_LLM_API_KEY -> llm.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	return k, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

type cliOptions struct {
	path    string
	profile string
	sets    []string
}

func parseCLIOverrides(args []string) (cliOptions, error) {
	var opts cliOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, inline := strings.Cut(arg, "=")
		switch name {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			opts.path = value
		case "--profile", "--env":
			opts.profile = value
		case "--set":
			if !strings.Contains(value, "=") {
				return opts, fmt.Errorf("invalid --set value %q, expected key=value", value)
			}
			opts.sets = append(opts.sets, value)
		}
	}
	return opts, nil
}

// applyOverrides sets key=value pairs. Values that parse as JSON keep their
// JSON type; anything else is a string.
func applyOverrides(k *koanf.Koanf, sets []string) error {
	for _, set := range sets {
		key, raw, _ := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("invalid --set value %q: empty key", set)
		}
		var value any = raw
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			value = decoded
		}
		if err := k.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
