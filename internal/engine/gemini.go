package engine

import (
	"context"
	"strings"

	"github.com/kalambet/vinsight/internal/gemini"
)

// GeminiEngine adapts gemini.Client to the Engine interface.
type GeminiEngine struct {
	client *gemini.Client
}

// NewGeminiEngine creates an engine backed by the Gemini API.
func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	c, err := gemini.New(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{client: c}, nil
}

// Chat folds system messages into the system instruction.
func (e *GeminiEngine) Chat(ctx context.Context, messages []Message, jsonSchema *Schema) (string, error) {
	var (
		system []string
		req    gemini.Request
	)
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.User = append(req.User, m.Content)
	}
	req.System = strings.Join(system, "\n\n")
	req.JSON = jsonSchema != nil
	return e.client.Generate(ctx, req)
}

func (e *GeminiEngine) Name() string { return ProviderGemini + ":" + e.client.Model() }

// IsRunning is true once the client is constructed; the SDK has no cheap
// health endpoint.
func (e *GeminiEngine) IsRunning(context.Context) bool { return e.client != nil }
