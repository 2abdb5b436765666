// Package config loads vinsight settings from the JSON config file, a .env
// file and VINSIGHT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOllamaBaseURL = "http://localhost:11434"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Insights InsightsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	H2C         bool
	CORSOrigins []string
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL is the address CLI clients use to reach the server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

type StorageConfig struct {
	Driver  string
	DataDir string
	DSN     string
}

type LLMConfig struct {
	Provider   string
	BaseURL    string
	Model      string
	APIVersion string
	APIKey     string
	Timeout    time.Duration
}

type InsightsConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  defaultOpenAIBaseURL,
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Insights: InsightsConfig{
			TTL: 720 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/vinsight/config.json, then applies environment variables.
// A .env file in the working directory is loaded first; variables already
// set in the process environment win over it.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	normalize(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == defaultOpenAIBaseURL {
		cfg.LLM.BaseURL = defaultOllamaBaseURL
	}
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

func validate(cfg Config) error {
	var errs []error

	switch cfg.LLM.Provider {
	case "ollama", "none":
	case "openai", "azure", "gemini":
		if cfg.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm provider %q needs an API key: set VINSIGHT_LLM_API_KEY", cfg.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", cfg.LLM.Provider))
	}
	if cfg.LLM.Provider == "azure" && cfg.LLM.APIVersion == "" {
		errs = append(errs, errors.New("llm provider \"azure\" needs llm.api_version"))
	}

	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Storage.DSN == "" {
			errs = append(errs, errors.New("storage driver \"postgres\" needs a DSN: set VINSIGHT_DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Insights.TTL <= 0 {
		errs = append(errs, errors.New("insights.ttl must be positive"))
	}
	if cfg.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "vinsight-data"
		}
	}
	return filepath.Join(dir, "vinsight")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "vinsight", "config.json")
}
