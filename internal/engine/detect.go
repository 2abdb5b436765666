package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/vinsight/internal/openai"
)

// Provider names accepted by llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Providers lists the accepted provider names.
var Providers = []string{ProviderOpenAI, ProviderAzure, ProviderOllama, ProviderGemini, ProviderNone}

// Config holds the parameters needed to build an Engine.
type Config struct {
	Provider   string
	BaseURL    string
	Model      string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
}

// Detect builds the Engine selected by cfg.Provider. The "none" provider
// returns a nil Engine, which makes every generation use the fallback
// template.
func Detect(ctx context.Context, cfg Config) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAIEngine(openai.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}, cfg.Model), nil
	case ProviderAzure:
		if cfg.APIVersion == "" {
			return nil, fmt.Errorf("provider %q requires llm.api_version", ProviderAzure)
		}
		return NewOpenAIEngine(openai.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}, cfg.Model), nil
	case ProviderOllama:
		return NewOllamaEngine(cfg.BaseURL, cfg.Model), nil
	case ProviderGemini:
		g, err := NewGeminiEngine(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want one of %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}
