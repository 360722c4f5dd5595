package summarizer

import (
	"context"
	"errors"
	"textdigest/internal/domain"
)

var (
	// ErrBackendUnavailable reports that the backend produced no result:
	// transport failures, error statuses, open breakers and expired deadlines.
	ErrBackendUnavailable = errors.New("summarization backend unavailable")
	// ErrMalformedOutput reports a response that could not be read as a summary.
	ErrMalformedOutput = errors.New("malformed backend output")
)

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the original plain text to summarise.
	Text string
	// MaxWords and MinWords are the desired summary length. Zero means no limit.
	MaxWords int
	MinWords int
	Style    domain.Style
	// Instructions are appended to the style template verbatim.
	Instructions string
	// Model overrides the backend's default model when set.
	Model string
	// Stream asks backends that support it to read the response incrementally.
	Stream bool
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
