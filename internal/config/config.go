package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "AGENT"

type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Retriever RetrieverConfig `mapstructure:"retriever"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider" validate:"oneof=ollama openai azure"`
	APIKey            string        `mapstructure:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" validate:"required,url"`
	Model             string        `mapstructure:"model" validate:"required"`
	APIVersion        string        `mapstructure:"api_version"`
	Temperature       float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int64         `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RetryAttempts     int           `mapstructure:"retry_attempts" validate:"gte=0,lte=10"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	UseTools          bool          `mapstructure:"use_tools"`
}

type StoreConfig struct {
	Path         string        `mapstructure:"path" validate:"required"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

type RetrieverConfig struct {
	DocsDir string `mapstructure:"docs_dir" validate:"required"`
	TopK    int    `mapstructure:"top_k" validate:"gt=0"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gt=0,lte=64"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// SetDefaults registers every known key on v so that environment overrides
// are picked up by Unmarshal even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.endpoint", "http://localhost:11434/v1")
	v.SetDefault("llm.model", "phi3.5:3.8b")
	v.SetDefault("llm.api_version", "2024-06-01")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.retry_attempts", 2)
	v.SetDefault("llm.requests_per_second", 0.0)
	v.SetDefault("llm.use_tools", false)

	v.SetDefault("store.path", "data/northwind.sqlite")
	v.SetDefault("store.query_timeout", 30*time.Second)

	v.SetDefault("retriever.docs_dir", "docs")
	v.SetDefault("retriever.top_k", 3)

	v.SetDefault("batch.concurrency", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the optional config file into v and decodes the result.
func LoadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded successfully", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return fmt.Errorf("invalid configuration: llm.api_key is required for provider %q", c.LLM.Provider)
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
