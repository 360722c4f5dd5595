package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"textdigest/internal/ollama"
	"textdigest/internal/prompt"
)

// Generator runs one completion against a generative model server.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

// OllamaSummarizer sends a fully formed instruction prompt to a local
// Ollama server.
type OllamaSummarizer struct {
	client       Generator
	defaultModel string
}

func NewOllamaSummarizer(client Generator, defaultModel string) *OllamaSummarizer {
	return &OllamaSummarizer{
		client:       client,
		defaultModel: strings.TrimSpace(defaultModel),
	}
}

func (s *OllamaSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = s.defaultModel
	}

	instructions := prompt.JoinInstructions(
		input.Instructions,
		prompt.WordLimit(input.MaxWords, input.MinWords),
	)

	out, err := s.client.Generate(ctx, ollama.GenerateRequest{
		Model:  model,
		Prompt: prompt.Build(text, input.Style, instructions),
		Stream: input.Stream,
	})
	if err != nil {
		if errors.Is(err, ollama.ErrMalformedResponse) {
			return "", fmt.Errorf("generate: %w: %w", ErrMalformedOutput, err)
		}

		return "", fmt.Errorf("generate: %w: %w", ErrBackendUnavailable, err)
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", fmt.Errorf("generate: %w: output text is missing (model = %s)", ErrMalformedOutput, model)
	}

	return summary, nil
}
