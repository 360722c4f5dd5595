package summarizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"textdigest/internal/domain"
	"textdigest/internal/ollama"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
)

type stubGenerator struct {
	mu       sync.Mutex
	requests []ollama.GenerateRequest
	out      string
	err      error
}

func (g *stubGenerator) Generate(_ context.Context, req ollama.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	return g.out, g.err
}

type stubSummarizer struct {
	mu    sync.Mutex
	calls int
	out   string
	err   error
}

func (s *stubSummarizer) Summarize(_ context.Context, _ Input) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	return s.out, s.err
}

func (s *stubSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOllamaSummarizerBuildsPrompt(t *testing.T) {
	gen := &stubGenerator{out: "  Summary text.  "}
	s := NewOllamaSummarizer(gen, "llama3.2:latest")

	got, err := s.Summarize(context.Background(), Input{
		Text:         "Some long article.",
		MaxWords:     150,
		MinWords:     50,
		Style:        domain.StyleAcademic,
		Instructions: "Focus on methods.",
		Stream:       true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "Summary text." {
		t.Fatalf("unexpected summary: %q", got)
	}

	if len(gen.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(gen.requests))
	}

	req := gen.requests[0]
	if req.Model != "llama3.2:latest" || !req.Stream {
		t.Fatalf("unexpected request: %+v", req)
	}

	for _, want := range []string{
		"academic-style summary",
		"Some long article.",
		"Focus on methods.",
		"approximately 150 words",
		"Academic Summary:",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, req.Prompt)
		}
	}
}

func TestOllamaSummarizerModelOverride(t *testing.T) {
	gen := &stubGenerator{out: "ok"}
	s := NewOllamaSummarizer(gen, "llama3.2:latest")

	if _, err := s.Summarize(context.Background(), Input{Text: "text", Model: "llama3.2:1b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.requests[0].Model != "llama3.2:1b" {
		t.Fatalf("expected model override, got %q", gen.requests[0].Model)
	}
}

func TestOllamaSummarizerClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
		want error
	}{
		{"transport", &stubGenerator{err: errors.New("dial tcp: connection refused")}, ErrBackendUnavailable},
		{"malformed", &stubGenerator{err: ollama.ErrMalformedResponse}, ErrMalformedOutput},
		{"empty", &stubGenerator{out: "   "}, ErrMalformedOutput},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewOllamaSummarizer(test.gen, "m").Summarize(context.Background(), Input{Text: "text"})
			if !errors.Is(err, test.want) {
				t.Fatalf("expected %v, got %v", test.want, err)
			}
		})
	}
}

func TestInstrumentRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	ok := Instrument(domain.BackendOllama, &stubSummarizer{out: "ok"}, metrics)
	failing := Instrument(domain.BackendOpenAI, &stubSummarizer{err: ErrBackendUnavailable}, metrics)

	for range 2 {
		_, _ = ok.Summarize(context.Background(), Input{Text: "t"})
	}
	_, _ = failing.Summarize(context.Background(), Input{Text: "t"})

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("ollama", outcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful ollama calls, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("openai", outcomeUnavailable)); got != 1 {
		t.Fatalf("expected 1 unavailable openai call, got %v", got)
	}

	metrics.ObserveChunks(3)
	if got := testutil.CollectAndCount(metrics.chunks); got != 1 {
		t.Fatalf("expected chunk histogram to be collected, got %d", got)
	}
}

func TestInstrumentWithoutMetricsReturnsNext(t *testing.T) {
	next := &stubSummarizer{}
	if got := Instrument(domain.BackendOllama, next, nil); got != next {
		t.Fatalf("expected undecorated summarizer")
	}
}

func TestOutcome(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"nil":         {nil, outcomeSuccess},
		"canceled":    {context.Canceled, outcomeCanceled},
		"malformed":   {ErrMalformedOutput, outcomeMalformed},
		"unavailable": {ErrBackendUnavailable, outcomeUnavailable},
		"other":       {errors.New("input is empty"), outcomeError},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := outcome(test.err); got != test.want {
				t.Fatalf("got %q want %q", got, test.want)
			}
		})
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	next := &stubSummarizer{err: ErrBackendUnavailable}
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 1

	b := WithBreaker(cfg, next, discardLogger())

	for range 3 {
		if _, err := b.Summarize(context.Background(), Input{Text: "t"}); !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("expected backend error, got %v", err)
		}
	}

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %v", b.State())
	}

	_, err := b.Summarize(context.Background(), Input{Text: "t"})
	if !errors.Is(err, ErrBackendUnavailable) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}

	if next.callCount() != 3 {
		t.Fatalf("open breaker must not call backend, got %d calls", next.callCount())
	}
}

func TestBreakerIgnoresMalformedOutput(t *testing.T) {
	next := &stubSummarizer{err: ErrMalformedOutput}
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 1
	cfg.FailureThreshold = 0.5

	b := WithBreaker(cfg, next, discardLogger())

	for range 3 {
		_, _ = b.Summarize(context.Background(), Input{Text: "t"})
	}

	if b.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %v", b.State())
	}
}

func TestInitialMaxOutputTokens(t *testing.T) {
	if got := initialMaxOutputTokens(0); got != baseMaxOutputTokens {
		t.Fatalf("expected base tokens, got %d", got)
	}
	if got := initialMaxOutputTokens(300); got != 1200 {
		t.Fatalf("expected budget-derived tokens, got %d", got)
	}
}
