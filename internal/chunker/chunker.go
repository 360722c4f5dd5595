// Package chunker fits arbitrarily long text into a summarization backend
// that accepts a bounded number of words per call.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultWindowSize is the word limit of a single backend call.
const DefaultWindowSize = 1024

var ErrInvalidWindowSize = errors.New("window size must be positive")

// Budget is the desired summary length in words.
type Budget struct {
	MaxWords int
	MinWords int
}

// Chunk is a contiguous run of document words rejoined with single spaces.
type Chunk struct {
	Index     int
	Text      string
	WordCount int
}

// ChunkFunc summarizes one chunk within the given word budget.
type ChunkFunc func(ctx context.Context, text string, maxWords, minWords int) (string, error)

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Split partitions text into windows of at most windowSize words. Only the
// last chunk may be shorter. Empty text yields no chunks.
func Split(text string, windowSize int) []Chunk {
	if windowSize <= 0 {
		return nil
	}

	return split(strings.Fields(text), windowSize)
}

func split(words []string, windowSize int) []Chunk {
	chunks := make([]Chunk, 0, (len(words)+windowSize-1)/windowSize)

	for start := 0; start < len(words); start += windowSize {
		end := min(start+windowSize, len(words))

		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      strings.Join(words[start:end], " "),
			WordCount: end - start,
		})
	}

	return chunks
}

// Summarize calls fn once with the untouched text when it fits the window.
// Longer text is split into windows that are summarized one after another
// with the budget divided by the chunk count, and the outputs are joined with
// a space in document order. Divided budgets are passed to fn as they are,
// even when they floor to zero or min exceeds max.
//
// A failed or cancelled chunk fails the whole call and no partial summary is
// returned.
func Summarize(
	ctx context.Context,
	text string,
	budget Budget,
	windowSize int,
	fn ChunkFunc,
) (string, error) {
	if windowSize <= 0 {
		return "", ErrInvalidWindowSize
	}

	words := strings.Fields(text)
	if len(words) <= windowSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		return fn(ctx, text, budget.MaxWords, budget.MinWords)
	}

	chunks := split(words, windowSize)
	count := len(chunks)
	chunkMax := budget.MaxWords / count
	chunkMin := budget.MinWords / count

	summaries := make([]string, 0, count)
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("summarize chunk %d of %d: %w", chunk.Index+1, count, err)
		}

		summary, err := fn(ctx, chunk.Text, chunkMax, chunkMin)
		if err != nil {
			return "", fmt.Errorf("summarize chunk %d of %d: %w", chunk.Index+1, count, err)
		}

		summaries = append(summaries, summary)
	}

	return strings.Join(summaries, " "), nil
}

// ChunkCount is the number of backend calls Summarize makes for text.
func ChunkCount(text string, windowSize int) int {
	if windowSize <= 0 {
		return 0
	}

	return max(1, (WordCount(text)+windowSize-1)/windowSize)
}
