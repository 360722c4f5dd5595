package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"textdigest/internal/prompt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultOpenAIModel = openai.ChatModelGPT5Mini2025_08_07

	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 4096
	// Reasoning models spend part of the output budget before the answer.
	outputTokensPerWord int64 = 4
)

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAISummarizer builds a new summarizer instance. Extra request
// options are applied after the API key.
func NewOpenAISummarizer(apiKey string, model string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	chatModel := openai.ChatModel(strings.TrimSpace(model))
	if chatModel == "" {
		chatModel = DefaultOpenAIModel
	}

	return &OpenAISummarizer{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:  chatModel,
	}, nil
}

// Summarize produces a single summary within the requested word budget.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	model := s.model
	if m := strings.TrimSpace(input.Model); m != "" {
		model = openai.ChatModel(m)
	}

	instructions := prompt.Instructions(
		input.Style,
		prompt.JoinInstructions(input.Instructions, prompt.WordLimit(input.MaxWords, input.MinWords)),
	)

	maxOutputTokens := initialMaxOutputTokens(input.MaxWords)
	limit := max(limitMaxOutputTokens, maxOutputTokens)

	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           model,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String("Content:\n" + text),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w: %w", ErrBackendUnavailable, err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limit {
				maxOutputTokens = min(maxOutputTokens*2, limit)
				continue
			}
			return "", fmt.Errorf(
				"%w: response is incomplete (reason = %s, maxOutputTokens = %d)",
				ErrMalformedOutput,
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("%w: output text is missing (status = %s)", ErrMalformedOutput, resp.Status)
		}
		return summary, nil
	}
}

func initialMaxOutputTokens(maxWords int) int64 {
	return max(baseMaxOutputTokens, int64(maxWords)*outputTokensPerWord)
}
