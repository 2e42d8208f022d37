package generator

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

const DefaultModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini generator. An empty APIKey lets the SDK
// read GEMINI_API_KEY or GOOGLE_API_KEY.
type GeminiConfig struct {
	APIKey string
	Model  string
}

type geminiGenerator struct {
	model    string
	generate func(ctx context.Context, model, prompt string) (string, error)
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newGeminiGenerator(cfg.Model, func(ctx context.Context, model, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}), nil
}

func newGeminiGenerator(model string, generate func(ctx context.Context, model, prompt string) (string, error)) *geminiGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &geminiGenerator{model: model, generate: generate}
}

func (g *geminiGenerator) Complete(ctx context.Context, p domain.Prompt) ([]string, error) {
	text, err := g.generate(ctx, g.model, BuildPrompt(p))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	suggestions := ParseSuggestions(text)
	l := log.Ctx(ctx)
	l.Debug().Str("model", g.model).Str("language", p.Language).Int("suggestions", len(suggestions)).Msg("completion generated")
	return suggestions, nil
}
