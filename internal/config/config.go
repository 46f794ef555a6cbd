// Package config loads the site configuration: site metadata, the ordered
// plugin list and runtime settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/note89/sitehooks/internal/validation"
	"github.com/note89/sitehooks/pkg/schema"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "sitehooks.json"

// Config holds all sitehooks configuration.
// Priority: env vars > config file > defaults.
type Config struct {
	SiteMetadata  SiteMetadata `json:"site_metadata"`
	Side          string       `json:"side"`
	Plugins       []PluginSpec `json:"plugins"`
	SiteHooks     Hooks        `json:"site_hooks,omitempty"`
	ExemptPlugins []string     `json:"exempt_plugins,omitempty"`
	Schedules     []Schedule   `json:"schedules,omitempty"`
	DBPath        string       `json:"db_path"`
	LogLevel      string       `json:"log_level"`
	LogFormat     string       `json:"log_format"`
}

// SiteMetadata describes the site. It is exposed to script hooks as `site`.
type SiteMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SiteURL     string `json:"site_url,omitempty"`
}

// Map returns the metadata as a plain map for expression environments.
func (m SiteMetadata) Map() map[string]any {
	return map[string]any{
		"title":       m.Title,
		"description": m.Description,
		"siteUrl":     m.SiteURL,
	}
}

// PluginSpec is one entry of the plugin list. Resolve selects the
// implementation; Name defaults to Resolve.
type PluginSpec struct {
	Resolve string         `json:"resolve"`
	Name    string         `json:"name,omitempty"`
	Options map[string]any `json:"options,omitempty"`
	Hooks   Hooks          `json:"hooks,omitempty"`
}

// ID returns the plugin identity used in diagnostics.
func (p PluginSpec) ID() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Resolve
}

// Hooks maps API names to declarative hook bodies.
type Hooks map[string]HookSpec

// HookSpec is a hook implemented by an expression.
type HookSpec struct {
	Engine     string `json:"engine,omitempty"`
	Expression string `json:"expression"`
	When       string `json:"when,omitempty"`
	Async      bool   `json:"async,omitempty"`
}

// Schedule dispatches API on a cron spec. A failed run is retried up to
// Retries more times.
type Schedule struct {
	Name    string `json:"name,omitempty"`
	Spec    string `json:"spec"`
	API     string `json:"api"`
	Args    any    `json:"args,omitempty"`
	Retries int    `json:"retries,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Side:      "ssr",
		DBPath:    filepath.Join(".cache", "sitehooks.db"),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path falls back to SITEHOOKS_CONFIG, then DefaultFile;
// a missing default file is not an error.
func Load(path string, v validation.Validator) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if p := os.Getenv("SITEHOOKS_CONFIG"); p != "" {
			path, explicit = p, true
		} else {
			path = DefaultFile
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Decode(data, &cfg, v); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, schema.NewErrorf(schema.ErrCodeConfig, "read config %s", path).WithCause(err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Decode validates data against the config schema (when v is non-nil) and
// decodes it over cfg.
func Decode(data []byte, cfg *Config, v validation.Validator) error {
	if v != nil {
		if err := v.ValidateConfig(data); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return schema.NewError(schema.ErrCodeConfig, "decode config").WithCause(err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SITEHOOKS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SITEHOOKS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SITEHOOKS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SITEHOOKS_SIDE"); v != "" {
		cfg.Side = v
	}
}
