// Package config loads the application's YAML configuration with
// environment-variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML values in time.ParseDuration notation ("30s",
// "5m"), which yaml.v3 does not support for time.Duration directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

const (
	anthropicKeyEnv       = "ANTHROPIC_API_KEY"
	openaiKeyEnv          = "OPENAI_API_KEY"
	redditClientIDEnv     = "REDDIT_CLIENT_ID"
	redditClientSecretEnv = "REDDIT_CLIENT_SECRET"
	redditUsernameEnv     = "REDDIT_USERNAME"
	redditPasswordEnv     = "REDDIT_PASSWORD"
)

// Config holds all runtime settings.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Poller     PollerConfig     `yaml:"poller"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Gate       GateConfig       `yaml:"gate"`
	LLM        LLMConfig        `yaml:"llm"`
	Moderation ModerationConfig `yaml:"moderation"`
	Reddit     RedditConfig     `yaml:"reddit"`
	API        APIConfig        `yaml:"api"`
	LogLevel   string           `yaml:"logLevel"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PollerConfig controls feed discovery.
type PollerConfig struct {
	Topic       string   `yaml:"topic"`
	Interval    Duration `yaml:"interval"`
	BatchLimit  int      `yaml:"batchLimit"`
	OrphanAfter Duration `yaml:"orphanAfter"`
}

// PublisherConfig controls leased publishing and retry behaviour.
type PublisherConfig struct {
	Interval      Duration `yaml:"interval"`
	LeaseDuration Duration `yaml:"leaseDuration"`
	SweepInterval Duration `yaml:"sweepInterval"`
	MaxAttempts   int      `yaml:"maxAttempts"`
	BaseBackoff   Duration `yaml:"baseBackoff"`
	MaxBackoff    Duration `yaml:"maxBackoff"`
	Concurrency   int      `yaml:"concurrency"`
	Timeout       Duration `yaml:"timeout"`
	DryRun        bool     `yaml:"dryRun"`
}

// GateConfig controls review policy.
type GateConfig struct {
	RemoderateOnEdit bool `yaml:"remoderateOnEdit"`
}

// LLMConfig selects and configures the drafting provider.
type LLMConfig struct {
	Provider string   `yaml:"provider"` // "anthropic" | "openai"
	Model    string   `yaml:"model"`
	APIKey   string   `yaml:"apiKey"`
	Timeout  Duration `yaml:"timeout"`
}

// ModerationConfig extends the built-in screening lexicon.
type ModerationConfig struct {
	ExtraFlaggedKeywords []string `yaml:"extraFlaggedKeywords"`
	ExtraBlockedTerms    []string `yaml:"extraBlockedTerms"`
}

// RedditConfig holds the script-app credentials.
type RedditConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	UserAgent    string `yaml:"userAgent"`
}

// APIConfig controls the review HTTP server.
type APIConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "scribe.db"},
		Poller: PollerConfig{
			Topic:       "learnpython",
			Interval:    Duration(time.Minute),
			BatchLimit:  25,
			OrphanAfter: Duration(time.Hour),
		},
		Publisher: PublisherConfig{
			Interval:      Duration(5 * time.Second),
			LeaseDuration: Duration(2 * time.Minute),
			SweepInterval: Duration(30 * time.Second),
			MaxAttempts:   5,
			BaseBackoff:   Duration(2 * time.Second),
			MaxBackoff:    Duration(5 * time.Minute),
			Concurrency:   2,
			Timeout:       Duration(30 * time.Second),
		},
		Gate: GateConfig{RemoderateOnEdit: true},
		LLM: LLMConfig{
			Provider: "anthropic",
			Timeout:  Duration(60 * time.Second),
		},
		API:      APIConfig{Addr: ":8080", Enabled: true},
		LogLevel: "info",
	}
}

// Load reads YAML configuration from path (empty path means defaults
// only) and applies environment overrides for credentials.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	switch c.LLM.Provider {
	case "openai":
		if v := os.Getenv(openaiKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
	default:
		if v := os.Getenv(anthropicKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv(redditClientIDEnv); v != "" {
		c.Reddit.ClientID = v
	}
	if v := os.Getenv(redditClientSecretEnv); v != "" {
		c.Reddit.ClientSecret = v
	}
	if v := os.Getenv(redditUsernameEnv); v != "" {
		c.Reddit.Username = v
	}
	if v := os.Getenv(redditPasswordEnv); v != "" {
		c.Reddit.Password = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Poller.Topic == "" {
		return fmt.Errorf("config: poller.topic is required")
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	return nil
}
