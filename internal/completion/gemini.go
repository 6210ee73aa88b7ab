package completion

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a Gemini API client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{client: client, modelName: modelName}, nil
}

// Complete implements Completer.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	temp := float32(0.7)
	topP := float32(0.9)
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: 2048,
	})
}

// CompleteJSON implements StructuredCompleter by requesting application/json output.
func (g *GeminiClient) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	temp := float32(0.2)
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  512,
	})
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Name identifies the adapter in logs and health output.
func (g *GeminiClient) Name() string {
	return "gemini:" + g.modelName
}
