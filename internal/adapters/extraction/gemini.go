package extraction

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generator produces a JSON completion for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GeminiGenerator calls the Gemini API in JSON response mode.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGeminiGenerator returns a generator bound to model. An empty apiKey
// yields ErrNotConfigured.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, temperature float64, maxTokens int) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction.client: %w", err)
	}
	return &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens), //nolint:gosec // bounded by config validation
	}, nil
}

// Generate sends the prompt and returns the response text.
func (g *GeminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
