// Package config loads sqltalk configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sqltalk configuration.
type Config struct {
	// Conversation engine tunables
	Conversation ConversationConfig `yaml:"conversation"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// SQL generation configuration
	LLM LLMConfig `yaml:"llm"`

	// Target database
	Database DatabaseConfig `yaml:"database"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ConversationConfig configures detection and context management.
type ConversationConfig struct {
	WindowSize             int     `yaml:"window_size"`
	FollowupThreshold      float64 `yaml:"followup_threshold"`
	AnswerTruncationLength int     `yaml:"answer_truncation_length"`
	MaxKeyFacts            int     `yaml:"max_key_facts"`
	CompareWindow          int     `yaml:"compare_window"`
	MaxResultRows          int     `yaml:"max_result_rows"`
	SessionTTL             string  `yaml:"session_ttl"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai, none
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	OllamaTimeout  string `yaml:"ollama_timeout"`
	APIKey         string `yaml:"api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// LLMConfig configures SQL generation.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// DatabaseConfig configures the target database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error
	Dir       string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Conversation: ConversationConfig{
			WindowSize:             5,
			FollowupThreshold:      0.4,
			AnswerTruncationLength: 300,
			MaxKeyFacts:            6,
			CompareWindow:          3,
			MaxResultRows:          10,
			SessionTTL:             "30m",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			OllamaTimeout:  "30s",
			GenAIModel:     "gemini-embedding-001",
		},
		LLM: LLMConfig{
			Model: "gemini-2.0-flash",
		},
		Database: DatabaseConfig{
			Path: "data/sqltalk.db",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Dir:       ".sqltalk/logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if key := os.Getenv("SQLTALK_EMBEDDING_API_KEY"); key != "" {
		c.Embedding.APIKey = key
	}
	if url := os.Getenv("OLLAMA_HOST"); url != "" {
		c.Embedding.OllamaEndpoint = url
	}
	if provider := os.Getenv("SQLTALK_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if path := os.Getenv("SQLTALK_DB"); path != "" {
		c.Database.Path = path
	}
	if os.Getenv("SQLTALK_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Conversation.SessionTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetOllamaTimeout returns the Ollama HTTP timeout as a duration.
func (c *Config) GetOllamaTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.OllamaTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Conversation.WindowSize < 1 {
		return fmt.Errorf("conversation.window_size must be at least 1")
	}
	if c.Conversation.FollowupThreshold <= 0 || c.Conversation.FollowupThreshold >= 1 {
		return fmt.Errorf("conversation.followup_threshold must be in (0, 1)")
	}
	switch c.Embedding.Provider {
	case "ollama", "genai", "none":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}
