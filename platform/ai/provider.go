// Package ai selects the language model backend used by the assistant.
package ai

import (
	"context"
	"fmt"

	"portal_insights_backend/platform/ai/openaicompat"
	"portal_insights_backend/platform/config"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// NewModel builds the configured model.LLM. "gemini" uses the ADK Gemini
// backend; "openai" covers every OpenAI-compatible endpoint.
func NewModel(ctx context.Context, cfg config.LLMConfig) (model.LLM, error) {
	switch cfg.GetLLMProvider() {
	case "gemini":
		name := cfg.GetLLMModel()
		if name == "" {
			name = defaultGeminiModel
		}
		llm, err := gemini.NewModel(ctx, name, &genai.ClientConfig{
			APIKey:  cfg.GetLLMAPIKey(),
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini model: %w", err)
		}
		return llm, nil
	case "openai", "":
		return openaicompat.NewModel(openaicompat.Config{
			APIKey:  cfg.GetLLMAPIKey(),
			BaseURL: cfg.GetLLMBaseURL(),
			Model:   cfg.GetLLMModel(),
			Timeout: cfg.GetLLMTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.GetLLMProvider())
	}
}
