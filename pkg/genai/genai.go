package genai

import (
	"context"
	"fmt"

	"validata-backend/pkg/config"

	"go.uber.org/fx"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

var Module = fx.Module("genai",
	fx.Provide(New),
)

// New builds the Gemini API client used by the research agent.
func New(cfg *config.Config) (*genai.Client, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return client, nil
}

// Model resolves the configured Gemini model name.
func Model(cfg *config.Config) string {
	if cfg.Gemini.Model != "" {
		return cfg.Gemini.Model
	}
	return DefaultModel
}
