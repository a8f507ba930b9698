package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration. Values come from the config file
// when present, overridden by DEEPRESEARCH_* environment variables.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Search  SearchConfig  `mapstructure:"search"`
	Session SessionConfig `mapstructure:"session"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Debug          bool     `mapstructure:"debug"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LLMConfig holds the text-generation provider settings.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`

	// Per-subject call throttle, requests per minute. Zero disables.
	UserRequestsPerMinute int `mapstructure:"user_requests_per_minute"`
	UserBurst             int `mapstructure:"user_burst"`
}

// SearchConfig holds the search provider settings.
type SearchConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxResults int    `mapstructure:"max_results"`
	FetchPages bool   `mapstructure:"fetch_pages"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	// Storage is "memory" or "file".
	Storage string `mapstructure:"storage"`
	// Dir is the file storage directory when Storage is "file".
	Dir string `mapstructure:"dir"`

	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// Parallelism bounds concurrent search tasks per execution.
	Parallelism int           `mapstructure:"parallelism"`
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// LimitsConfig holds the per-subject fixed-window request quotas.
type LimitsConfig struct {
	CreateSessionPerMinute int `mapstructure:"create_session_per_minute"`
	WorkflowPerMinute      int `mapstructure:"workflow_per_minute"`
	StreamPerMinute        int `mapstructure:"stream_per_minute"`
}

// Load reads the configuration. An absent config file is not an error; the
// defaults plus environment variables are enough to run.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("deepresearch-config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DEEPRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.user_requests_per_minute", 0)
	v.SetDefault("llm.user_burst", 3)

	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "https://api.tavily.com")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.fetch_pages", true)

	v.SetDefault("session.storage", "memory")
	v.SetDefault("session.dir", "~/.deepresearch/sessions")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweep_interval", 10*time.Minute)
	v.SetDefault("session.parallelism", 3)
	v.SetDefault("session.step_timeout", 10*time.Minute)

	v.SetDefault("limits.create_session_per_minute", 20)
	v.SetDefault("limits.workflow_per_minute", 30)
	v.SetDefault("limits.stream_per_minute", 60)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Session.Storage != "memory" && c.Session.Storage != "file" {
		return fmt.Errorf("unknown session storage %q", c.Session.Storage)
	}
	if c.Session.Parallelism <= 0 {
		return fmt.Errorf("session parallelism must be positive, got %d", c.Session.Parallelism)
	}
	return nil
}
