package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
)

// GeminiCompleter generates answers with Google's generative AI API
type GeminiCompleter struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiCompleter creates a client for cfg.Gemini.Model
func NewGeminiCompleter(ctx context.Context, cfg config.RAGConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Gemini.Model)
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	model.SetTemperature(float32(cfg.Temperature))

	return &GeminiCompleter{client: client, model: model}, nil
}

func (g *GeminiCompleter) Name() string { return config.ProviderGemini }

// Complete sends the system instruction and user prompt in one request
func (g *GeminiCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt.System+"\n\n"+prompt.User))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("response contained no text")
	}
	return sb.String(), nil
}

// Close releases the underlying client
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}
