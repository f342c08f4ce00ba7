// Package config loads aiorch settings from TOML, JSON or YAML files and
// provider credentials from the environment and .env files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/paths"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt seeds new conversations.
const DefaultSystemPrompt = "You are an expert programmer."

// DefaultMaxContextMessages is how many trailing messages the windower keeps.
const DefaultMaxContextMessages = 15

// Config is the full aiorch configuration.
type Config struct {
	SystemPrompt       string  `json:"systemPrompt" toml:"system_prompt" yaml:"systemPrompt"`
	MaxContextMessages int     `json:"maxContextMessages" toml:"max_context_messages" yaml:"maxContextMessages"`
	MaxContextTokens   int     `json:"maxContextTokens" toml:"max_context_tokens" yaml:"maxContextTokens"` // 0 = no token budget
	Temperature        float32 `json:"temperature" toml:"temperature" yaml:"temperature"`
	MaxTokens          int     `json:"maxTokens" toml:"max_tokens" yaml:"maxTokens"`
	TimeoutSeconds     int     `json:"timeoutSeconds" toml:"timeout_seconds" yaml:"timeoutSeconds"` // 0 = no per-attempt timeout

	// Models replaces the built-in catalog when non-empty.
	Models []llm.ModelDescriptor `json:"models,omitempty" toml:"models,omitempty" yaml:"models,omitempty"`
	// BaseURLs overrides provider endpoints, keyed by family.
	BaseURLs map[string]string `json:"baseURLs,omitempty" toml:"base_urls,omitempty" yaml:"baseURLs,omitempty"`

	// SessionStore selects the conversation backend: "file" or "sqlite".
	SessionStore string        `json:"sessionStore,omitempty" toml:"session_store,omitempty" yaml:"sessionStore,omitempty"`
	SessionsDir  string        `json:"sessionsDir,omitempty" toml:"sessions_dir,omitempty" yaml:"sessionsDir,omitempty"`
	Metrics      MetricsConfig `json:"metrics" toml:"metrics" yaml:"metrics"`
	Log          LogConfig     `json:"log" toml:"log" yaml:"log"`
}

// Session store backends.
const (
	SessionStoreFile   = "file"
	SessionStoreSQLite = "sqlite"
)

// MetricsConfig controls attempt statistics persistence.
type MetricsConfig struct {
	Disabled bool   `json:"disabled,omitempty" toml:"disabled,omitempty" yaml:"disabled,omitempty"`
	Path     string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"` // default ~/.ai-orch/metrics.db
}

// LogConfig controls diagnostics output.
type LogConfig struct {
	Level string `json:"level,omitempty" toml:"level,omitempty" yaml:"level,omitempty"`
	File  string `json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SystemPrompt:       DefaultSystemPrompt,
		MaxContextMessages: DefaultMaxContextMessages,
		Temperature:        llm.DefaultTemperature,
		MaxTokens:          llm.DefaultMaxTokens,
		SessionStore:       SessionStoreFile,
	}
}

// Load reads the config at path, or the first config found by
// paths.ConfigPath when path is empty. A missing config is not an error.
// File values win; anything unset falls back to Default().
// Returns the config and the path it came from ("" for defaults).
func Load(path string) (*Config, string, error) {
	if path == "" {
		found, err := paths.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	if path == "" {
		logging.L_debug("config: no config file, using defaults")
		cfg := Default()
		return cfg, "", cfg.Validate()
	}

	expanded, err := paths.ExpandTilde(path)
	if err != nil {
		return nil, "", err
	}

	cfg, err := decodeFile(expanded)
	if err != nil {
		return nil, expanded, err
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, expanded, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, expanded, fmt.Errorf("invalid config %s: %w", expanded, err)
	}

	logging.L_debug("config: loaded", "path", expanded, "models", len(cfg.Models))
	return cfg, expanded, nil
}

func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode YAML %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// Validate checks ranges and catalog entries.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxContextMessages < 1 {
		errs = append(errs, fmt.Errorf("maxContextMessages must be >= 1, got %d", c.MaxContextMessages))
	}
	if c.MaxContextTokens < 0 {
		errs = append(errs, fmt.Errorf("maxContextTokens must be >= 0"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature))
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeoutSeconds must be >= 0"))
	}
	switch c.SessionStore {
	case "", SessionStoreFile, SessionStoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("sessionStore must be %q or %q, got %q", SessionStoreFile, SessionStoreSQLite, c.SessionStore))
	}
	for i, m := range c.Models {
		if m.ID == "" || m.Family == "" {
			errs = append(errs, fmt.Errorf("models[%d]: id and provider are required", i))
		}
	}
	return errors.Join(errs...)
}

// Catalog returns the configured models, or the built-in catalog.
func (c *Config) Catalog() []llm.ModelDescriptor {
	if len(c.Models) > 0 {
		out := make([]llm.ModelDescriptor, len(c.Models))
		copy(out, c.Models)
		return out
	}
	return llm.DefaultCatalog()
}

// Timeout returns the per-attempt timeout, 0 for none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AdapterOptions converts provider settings for llm.BuildPool.
func (c *Config) AdapterOptions() llm.AdapterOptions {
	return llm.AdapterOptions{
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout(),
		BaseURLs:    c.BaseURLs,
	}
}

// ResolveSessionsDir returns the sessions directory, defaulting under BaseDir.
func (c *Config) ResolveSessionsDir() (string, error) {
	if c.SessionsDir != "" {
		return paths.ExpandTilde(c.SessionsDir)
	}
	return paths.SessionsDir()
}

// ResolveSessionsDB returns the SQLite session database path, kept inside
// the sessions directory.
func (c *Config) ResolveSessionsDB() (string, error) {
	dir, err := c.ResolveSessionsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// ResolveMetricsPath returns the metrics database path.
func (c *Config) ResolveMetricsPath() (string, error) {
	if c.Metrics.Path != "" {
		return paths.ExpandTilde(c.Metrics.Path)
	}
	return paths.DataPath("metrics.db")
}

// LoadEnv loads credentials from .env files without overriding variables
// already set. Missing files are skipped. Returns the files that were read.
func LoadEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = paths.EnvFiles()
	}
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", f, err)
		}
		loaded = append(loaded, f)
		logging.L_debug("config: loaded env file", "path", f)
	}
	return loaded, nil
}

// WriteDefault writes a starter TOML config to path. Existing files are
// backed up to <path>.bak first.
func WriteDefault(path string) error {
	cfg := Default()
	cfg.Models = llm.DefaultCatalog()

	var b strings.Builder
	b.WriteString("# aiorch configuration. Remove [[models]] to use the built-in catalog.\n")
	envs := make([]string, 0, len(llm.CredentialEnv))
	for _, env := range llm.CredentialEnv {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	b.WriteString("# Credentials come from the environment or .env: " + strings.Join(envs, ", "))
	b.WriteString("\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return BackupAndWrite(path, []byte(b.String()), 0600)
}
