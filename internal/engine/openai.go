package engine

import (
	"context"
	"time"

	"github.com/kalambet/vinsight/internal/openai"
)

// OpenAIEngine adapts openai.Client to the Engine interface.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an engine for an OpenAI-compatible endpoint.
func NewOpenAIEngine(cfg openai.Config, model string) *OpenAIEngine {
	return &OpenAIEngine{client: openai.New(cfg), model: model}
}

func (e *OpenAIEngine) Chat(ctx context.Context, messages []Message, jsonSchema *Schema) (string, error) {
	req := openai.ChatRequest{
		Model:    e.model,
		Messages: make([]openai.Message, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	if jsonSchema != nil {
		req.ResponseFormat = &openai.ResponseFormat{Type: "json_object"}
	}
	return e.client.Complete(ctx, req)
}

func (e *OpenAIEngine) Name() string {
	if e.client.Azure() {
		return ProviderAzure + ":" + e.model
	}
	return ProviderOpenAI + ":" + e.model
}

// IsRunning lists models with a short deadline. Any 2xx answer counts.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}
