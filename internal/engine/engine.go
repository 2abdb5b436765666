// Package engine abstracts the chat-completion backends used to write vehicle
// insights. Each Engine is bound to one model at construction time.
package engine

import "context"

// Engine is a chat-completion backend (an OpenAI-compatible API, Ollama or
// Gemini). Consumers such as the insight generator use this interface
// instead of depending on a concrete client.
type Engine interface {
	// Chat sends messages to the bound model and returns the assistant's
	// response. When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, messages []Message, jsonSchema *Schema) (string, error)

	// Name identifies the provider and model, e.g. "openai:gpt-4o-mini".
	Name() string

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

// Puller is implemented by engines that host models locally and can
// download a missing one.
type Puller interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
	Model() string
}
