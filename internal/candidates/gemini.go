package candidates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiClient is a TextGenerator backed by the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// Compile-time check that GeminiClient implements TextGenerator.
var _ TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient connects to Gemini. An empty apiKey returns ErrNotConfigured.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.7)

	return &GeminiClient{client: client, model: m, modelName: model}, nil
}

// GenerateText sends prompt and returns the first text part of the reply.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	slog.Debug("Sending prompt to Gemini", "model", c.modelName, "prompt_chars", len(prompt))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned from gemini")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}
	return "", fmt.Errorf("unexpected response format from gemini")
}

// Close releases the underlying client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
