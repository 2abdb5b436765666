// Package gemini generates completions with Google's Gemini models through
// the official genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const maxAttempts = 3

// ErrNoCandidates is returned when the response carries no text.
var ErrNoCandidates = errors.New("gemini: response has no candidates")

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client wraps a genai client bound to one model.
type Client struct {
	models  contentGenerator
	model   string
	backoff time.Duration
}

// New creates a Client for the Gemini API. An empty apiKey lets the SDK read
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{models: cli.Models, model: model, backoff: 300 * time.Millisecond}, nil
}

// Model returns the bound model name.
func (c *Client) Model() string { return c.model }

// Request is one generation call. System becomes the system instruction.
type Request struct {
	System string
	User   []string
	JSON   bool
}

// Generate returns the text of the first candidate. Failed calls are retried
// with exponential backoff.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.User))
	for _, u := range req.User {
		contents = append(contents, genai.NewContentFromText(u, genai.RoleUser))
	}
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	var lastErr error
	for attempt := range maxAttempts {
		resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
		if err == nil {
			if txt, ok := firstText(resp); ok {
				return txt, nil
			}
			err = ErrNoCandidates
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff << attempt):
			}
		}
	}
	return "", fmt.Errorf("gemini %s: %w", c.model, lastErr)
}

func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", false
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}
