package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"textdigest/internal/database"
	"textdigest/internal/domain"
	"textdigest/internal/extract"
	"textdigest/internal/service"
	"textdigest/internal/stats"
	"textdigest/internal/summarizer"
)

func TestFormatSummaryMessage(t *testing.T) {
	res := &service.Result{
		Summary: "Short summary (with parens).",
		Stats: stats.Stats{
			OriginalChars:    12000,
			SummaryChars:     600,
			OriginalWords:    2000,
			SummaryWords:     100,
			CompressionRatio: 5,
			ProcessingTime:   1500 * time.Millisecond,
		},
		Chunks:  2,
		Backend: domain.BackendOllama,
		Model:   "llama3.2",
		Style:   domain.StyleBulletPoints,
	}

	got := formatSummaryMessage("Article: part 1", res)

	for _, want := range []string{
		"🔗 *Article: part 1*",
		"Bullet",
		"ollama/llama3\\.2",
		"Short summary \\(with parens\\)\\.",
		"Characters: 12,000 → 600",
		"Words: 2,000 → 100",
		"Compression: 5\\.0%",
		"Chunks: 2",
		"Processing time: 1\\.5s",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected message to contain %q, got:\n%s", want, got)
		}
	}

	if strings.Contains(got, "Cached") {
		t.Fatalf("expected no cache marker for fresh result, got:\n%s", got)
	}
}

func TestFormatSummaryMessageWithoutTitle(t *testing.T) {
	res := &service.Result{
		Summary: "Summary",
		Backend: domain.BackendOpenAI,
		Style:   domain.StyleGeneral,
		Cached:  true,
	}

	got := formatSummaryMessage("  ", res)

	if strings.Contains(got, "🔗") {
		t.Fatalf("expected no title line, got:\n%s", got)
	}
	if !strings.Contains(got, "\\(General · openai\\)") {
		t.Fatalf("expected backend without model, got:\n%s", got)
	}
	if !strings.Contains(got, "Cached: yes") {
		t.Fatalf("expected cache marker, got:\n%s", got)
	}
}

func TestFormatSettings(t *testing.T) {
	got := formatSettings(&domain.ChatSettings{
		Backend:  domain.BackendOllama,
		Style:    domain.StyleQuestions,
		MaxWords: 150,
		MinWords: 50,
	})

	for _, want := range []string{
		"Backend: ollama",
		"Model: default",
		"Style: Q&A",
		"Length: 50–150 words",
		"Streaming: off",
		"Instructions: none",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected settings to contain %q, got:\n%s", want, got)
		}
	}

	got = formatSettings(&domain.ChatSettings{
		Backend:      domain.BackendOpenAI,
		Model:        "gpt-4o-mini",
		Style:        domain.StyleGeneral,
		MaxWords:     100,
		MinWords:     10,
		Stream:       true,
		Instructions: "Keep names.",
	})

	for _, want := range []string{
		"Model: gpt\\-4o\\-mini",
		"Streaming: on",
		"Instructions: Keep names\\.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected settings to contain %q, got:\n%s", want, got)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	if got := formatHistory(nil); got != "🗂 History is empty\\." {
		t.Fatalf("unexpected empty history text: %q", got)
	}

	got := formatHistory([]domain.HistoryEntry{
		{
			ID:        7,
			CreatedAt: time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC),
			Summary:   "Newest.",
			Backend:   domain.BackendOpenAI,
			Style:     domain.StyleExecutive,
		},
		{
			ID:        3,
			CreatedAt: time.Date(2026, 3, 3, 5, 6, 0, 0, time.UTC),
			Summary:   strings.Repeat("a", 300),
			Backend:   domain.BackendOllama,
			Style:     domain.StyleGeneral,
		},
	})

	for _, want := range []string{
		"*History* \\(2\\)",
		"*1\\.* 2026\\-03\\-04 05:06 · Executive · openai",
		"Newest\\.",
		"*2\\.* 2026\\-03\\-03 05:06 · General · ollama",
		strings.Repeat("a", 200) + "\\.\\.\\.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected history to contain %q, got:\n%s", want, got)
		}
	}
}

func TestUserErrorText(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantPrefix  string
		wantHandled bool
	}{
		{
			name:        "too short",
			err:         fmt.Errorf("summarize: %w: got 5 characters", service.ErrTextTooShort),
			wantPrefix:  "✖️ The text is too short",
			wantHandled: true,
		},
		{
			name:        "empty",
			err:         service.ErrEmptyText,
			wantPrefix:  "✖️ The text is empty\\.",
			wantHandled: true,
		},
		{
			name:        "not configured",
			err:         fmt.Errorf("x: %w", service.ErrBackendNotConfigured),
			wantPrefix:  "✖️ This backend is not configured",
			wantHandled: true,
		},
		{
			name:        "too large",
			err:         fmt.Errorf("x: %w", extract.ErrTooLarge),
			wantPrefix:  "✖️ The file is too large",
			wantHandled: true,
		},
		{
			name:        "no text",
			err:         fmt.Errorf("x: %w", extract.ErrNoText),
			wantPrefix:  "✖️ No readable text",
			wantHandled: true,
		},
		{
			name:        "not found",
			err:         fmt.Errorf("x: %w", database.ErrNotFound),
			wantPrefix:  "✖️ The summary is not in the history",
			wantHandled: true,
		},
		{
			name:       "unavailable",
			err:        fmt.Errorf("x: %w", summarizer.ErrBackendUnavailable),
			wantPrefix: "❌ The summarization backend is unavailable",
		},
		{
			name:       "malformed",
			err:        fmt.Errorf("x: %w", summarizer.ErrMalformedOutput),
			wantPrefix: "❌ The backend returned an unreadable answer",
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantPrefix: failedText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, handled := userErrorText(tt.err)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("unexpected text: got %q want prefix %q", got, tt.wantPrefix)
			}
			if handled != tt.wantHandled {
				t.Fatalf("unexpected handled flag: got %v want %v", handled, tt.wantHandled)
			}
		})
	}
}
