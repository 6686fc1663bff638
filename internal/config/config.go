// Package config loads runtime settings from .env, an optional TOML file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/tv7/C-Claw/internal/classifier"
	"github.com/tv7/C-Claw/internal/memory"
	"github.com/tv7/C-Claw/internal/sweeper"
)

// Environment variables read by Load.
const (
	EnvConfig    = "CCLAW_CONFIG"
	EnvDB        = "CCLAW_DB"
	EnvLogLevel  = "CCLAW_LOG_LEVEL"
	EnvModel     = "CCLAW_MODEL"
	EnvMaxTokens = "CCLAW_MAX_TOKENS"
	EnvAPIKey    = "ANTHROPIC_API_KEY"
)

// Config is the full runtime configuration.
type Config struct {
	DBPath         string           `toml:"db_path"`
	LogLevel       string           `toml:"log_level"`
	LogDevelopment bool             `toml:"log_development"`
	SweepInterval  string           `toml:"sweep_interval"`
	Agent          AgentConfig      `toml:"agent"`
	Memory         MemoryConfig     `toml:"memory"`
	Classifier     ClassifierConfig `toml:"classifier"`
}

// AgentConfig selects the reasoning backend.
type AgentConfig struct {
	// Backend is "anthropic" or "echo".
	Backend   string `toml:"backend"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int64  `toml:"max_tokens"`
	System    string `toml:"system"`
}

type MemoryConfig struct {
	MaxKeywords      int `toml:"max_keywords"`
	MinKeywordLength int `toml:"min_keyword_length"`
	SearchLimit      int `toml:"search_limit"`
	RecentLimit      int `toml:"recent_limit"`
}

type ClassifierConfig struct {
	MinLength     int      `toml:"min_length"`
	MinWords      int      `toml:"min_words"`
	ExcerptLength int      `toml:"excerpt_length"`
	Triggers      []string `toml:"triggers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	mem := memory.DefaultOptions()
	cls := classifier.DefaultOptions()
	return &Config{
		DBPath:        filepath.Join(home, ".cclaw", "memory.db"),
		LogLevel:      "info",
		SweepInterval: sweeper.DefaultInterval.String(),
		Agent: AgentConfig{
			Backend: "anthropic",
		},
		Memory: MemoryConfig{
			MaxKeywords:      mem.MaxKeywords,
			MinKeywordLength: mem.MinKeywordLength,
			SearchLimit:      mem.SearchLimit,
			RecentLimit:      mem.RecentLimit,
		},
		Classifier: ClassifierConfig{
			MinLength:     cls.MinLength,
			MinWords:      cls.MinWords,
			ExcerptLength: cls.ExcerptLength,
		},
	}
}

// LoadDotEnv loads the given .env files (".env" if none) into the process
// environment. Missing files are ignored; existing variables are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return goerr.Wrap(err, "failed to load env file", goerr.V("path", f))
		}
	}
	return nil
}

// Load builds the configuration. path, or $CCLAW_CONFIG when path is empty,
// names an optional TOML file.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		// #nosec G304 - path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V("path", path))
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Agent.Model = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Agent.APIKey = v
	}
	if v := os.Getenv(EnvMaxTokens); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return goerr.Wrap(err, "invalid max tokens", goerr.V("env", EnvMaxTokens), goerr.V("value", v))
		}
		c.Agent.MaxTokens = n
	}
	return nil
}

// Validate checks the configuration for values the components would reject
// or silently replace.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return goerr.New("db_path is required")
	}
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return goerr.Wrap(err, "invalid sweep_interval", goerr.V("value", c.SweepInterval))
	}
	if d < time.Minute {
		return goerr.New("sweep_interval must be at least 1m", goerr.V("value", c.SweepInterval))
	}
	switch c.Agent.Backend {
	case "anthropic", "echo":
	default:
		return goerr.New("agent.backend must be anthropic or echo", goerr.V("value", c.Agent.Backend))
	}
	if c.Agent.MaxTokens < 0 {
		return goerr.New("agent.max_tokens must not be negative", goerr.V("value", c.Agent.MaxTokens))
	}

	positive := map[string]int{
		"memory.max_keywords":       c.Memory.MaxKeywords,
		"memory.min_keyword_length": c.Memory.MinKeywordLength,
		"memory.search_limit":       c.Memory.SearchLimit,
		"memory.recent_limit":       c.Memory.RecentLimit,
		"classifier.min_length":     c.Classifier.MinLength,
		"classifier.min_words":      c.Classifier.MinWords,
		"classifier.excerpt_length": c.Classifier.ExcerptLength,
	}
	for name, v := range positive {
		if v <= 0 {
			return goerr.New("value must be positive", goerr.V("field", name), goerr.V("value", v))
		}
	}
	if c.Classifier.ExcerptLength > classifier.MaxExcerptLength {
		return goerr.New("classifier.excerpt_length too large for stored content",
			goerr.V("value", c.Classifier.ExcerptLength), goerr.V("max", classifier.MaxExcerptLength))
	}
	return nil
}

// SweepDuration returns the parsed sweep interval. Call after Validate.
func (c *Config) SweepDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

func (c *Config) MemoryOptions() memory.Options {
	return memory.Options{
		MaxKeywords:      c.Memory.MaxKeywords,
		MinKeywordLength: c.Memory.MinKeywordLength,
		SearchLimit:      c.Memory.SearchLimit,
		RecentLimit:      c.Memory.RecentLimit,
	}
}

func (c *Config) ClassifierOptions() classifier.Options {
	opts := classifier.DefaultOptions()
	opts.MinLength = c.Classifier.MinLength
	opts.MinWords = c.Classifier.MinWords
	opts.ExcerptLength = c.Classifier.ExcerptLength
	if len(c.Classifier.Triggers) > 0 {
		opts.Triggers = c.Classifier.Triggers
	}
	return opts
}
