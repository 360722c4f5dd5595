// Package service validates summary requests, dispatches them to the
// configured backend through the chunker and records the results.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"textdigest/internal/chunker"
	"textdigest/internal/domain"
	"textdigest/internal/ollama"
	"textdigest/internal/stats"
	"textdigest/internal/summarizer"
)

const (
	DefaultMinTextChars = 100
	DefaultMaxWords     = 150
	DefaultMinWords     = 50

	// minWordsGap is how far below maxWords an inverted minimum is moved.
	minWordsGap = 10
)

var (
	ErrEmptyText            = errors.New("text is empty")
	ErrTextTooShort         = errors.New("text is too short")
	ErrInvalidBudget        = errors.New("maximum summary length must be positive")
	ErrBackendNotConfigured = errors.New("backend is not configured")
)

type Config struct {
	// WindowWords is the per-call word window of the Ollama backend.
	WindowWords int
	// OpenAIWindowWords is the per-call word window of the OpenAI backend.
	OpenAIWindowWords int
	BackendTimeout    time.Duration
	MinTextChars      int
	HistoryLimit      int
	CacheMaxEntries   int
	CacheTTL          time.Duration
	OllamaModel       string
	OpenAIModel       string
	// Defaults are the settings of chats that never changed them.
	Defaults domain.ChatSettings
}

type Store interface {
	AddHistoryEntry(ctx context.Context, entry *domain.HistoryEntry, limit int) (int64, error)
	GetHistory(ctx context.Context, chatID int64) ([]domain.HistoryEntry, error)
	GetHistoryEntry(ctx context.Context, chatID int64, entryID int64) (*domain.HistoryEntry, error)
	ClearHistory(ctx context.Context, chatID int64) (int64, error)
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
	GetChatSettingsWithDefault(
		ctx context.Context,
		chatID int64,
		defaults domain.ChatSettings,
	) (*domain.ChatSettings, error)
	UpsertChatSettings(ctx context.Context, settings *domain.ChatSettings) error
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Backends holds one summarizer per backend kind. Nil means not configured.
type Backends struct {
	Ollama summarizer.Summarizer
	OpenAI summarizer.Summarizer
}

type Request struct {
	ChatID   int64
	Text     string
	Settings domain.ChatSettings
}

type Result struct {
	Summary string
	Stats   stats.Stats
	Chunks  int
	Backend domain.BackendKind
	Model   string
	Style   domain.Style
	// EntryID is zero when the history entry could not be written.
	EntryID int64
	Cached  bool
}

type Service struct {
	cfg      Config
	store    Store
	backends Backends
	models   ModelLister
	metrics  *summarizer.Metrics
	cache    *summaryCache
	now      func() time.Time
	log      *slog.Logger

	modelsMu  sync.RWMutex
	modelList []string
}

func New(
	cfg Config,
	store Store,
	backends Backends,
	models ModelLister,
	metrics *summarizer.Metrics,
	log *slog.Logger,
) *Service {
	if cfg.WindowWords <= 0 {
		cfg.WindowWords = chunker.DefaultWindowSize
	}
	if cfg.OpenAIWindowWords <= 0 {
		cfg.OpenAIWindowWords = cfg.WindowWords
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	if cfg.Defaults.MaxWords <= 0 {
		cfg.Defaults.MaxWords = DefaultMaxWords
	}
	if cfg.Defaults.MinWords <= 0 {
		cfg.Defaults.MinWords = DefaultMinWords
	}
	if cfg.Defaults.Style == "" {
		cfg.Defaults.Style = domain.StyleGeneral
	}

	return &Service{
		cfg:      cfg,
		store:    store,
		backends: backends,
		models:   models,
		metrics:  metrics,
		cache:    newSummaryCache(cfg.CacheMaxEntries),
		now:      time.Now,
		log:      log,
	}
}

// NormalizeBudget validates the requested summary length. A minimum at or
// above the maximum is moved ten words below it, but not under one word.
func NormalizeBudget(maxWords, minWords int) (chunker.Budget, error) {
	if maxWords <= 0 {
		return chunker.Budget{}, fmt.Errorf("%w: got %d", ErrInvalidBudget, maxWords)
	}

	minWords = max(minWords, 0)
	if minWords >= maxWords {
		minWords = max(maxWords-minWordsGap, 1)
	}

	return chunker.Budget{MaxWords: maxWords, MinWords: minWords}, nil
}

// Summarize validates the request and summarizes its text with the chat's
// backend. The summary is stored in the chat history.
func (s *Service) Summarize(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if n := utf8.RuneCountInString(text); n < s.cfg.MinTextChars {
		return nil, fmt.Errorf("%w: got %d characters, need at least %d",
			ErrTextTooShort, n, s.cfg.MinTextChars)
	}

	settings := req.Settings
	if settings.Style == "" {
		settings.Style = s.cfg.Defaults.Style
	}

	budget, err := NormalizeBudget(settings.MaxWords, settings.MinWords)
	if err != nil {
		return nil, err
	}

	backend, window, defaultModel, err := s.backend(settings.Backend)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(settings.Model)
	if model == "" {
		model = defaultModel
	}

	started := s.now()

	key := summaryCacheKey(settings.Backend, model, settings, budget, text)
	cached, cacheHit := s.cache.get(key, started)

	if !cacheHit {
		cached, err = s.summarize(ctx, backend, window, text, budget, settings, model)
		if err != nil {
			return nil, err
		}

		s.cache.set(key, cached, started.Add(s.cfg.CacheTTL), s.now())
	}

	elapsed := s.now().Sub(started)

	result := &Result{
		Summary: cached.summary,
		Stats:   stats.Compute(text, cached.summary, elapsed),
		Chunks:  cached.chunks,
		Backend: settings.Backend,
		Model:   model,
		Style:   settings.Style,
		Cached:  cacheHit,
	}

	result.EntryID = s.addHistory(ctx, req.ChatID, text, result)

	return result, nil
}

func (s *Service) summarize(
	ctx context.Context,
	backend summarizer.Summarizer,
	window int,
	text string,
	budget chunker.Budget,
	settings domain.ChatSettings,
	model string,
) (cachedSummary, error) {
	if s.cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BackendTimeout)
		defer cancel()
	}

	chunks := chunker.ChunkCount(text, window)
	s.metrics.ObserveChunks(chunks)

	summary, err := chunker.Summarize(ctx, text, budget, window,
		func(ctx context.Context, chunk string, maxWords, minWords int) (string, error) {
			return backend.Summarize(ctx, summarizer.Input{
				Text:         chunk,
				MaxWords:     maxWords,
				MinWords:     minWords,
				Style:        settings.Style,
				Instructions: settings.Instructions,
				Model:        model,
				Stream:       settings.Stream,
			})
		})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, summarizer.ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %w", summarizer.ErrBackendUnavailable, err)
		}

		return cachedSummary{}, fmt.Errorf("summarize with %s: %w", settings.Backend, err)
	}

	return cachedSummary{summary: summary, chunks: chunks}, nil
}

// backend resolves the summarizer, word window and default model of kind.
func (s *Service) backend(kind domain.BackendKind) (summarizer.Summarizer, int, string, error) {
	var (
		backend summarizer.Summarizer
		window  int
		model   string
	)

	switch kind {
	case domain.BackendOllama:
		backend, window, model = s.backends.Ollama, s.cfg.WindowWords, s.cfg.OllamaModel
	case domain.BackendOpenAI:
		backend, window, model = s.backends.OpenAI, s.cfg.OpenAIWindowWords, s.cfg.OpenAIModel
	default:
		return nil, 0, "", fmt.Errorf("%w: %s", ErrBackendNotConfigured, kind)
	}

	if backend == nil {
		return nil, 0, "", fmt.Errorf("%w: %s", ErrBackendNotConfigured, kind)
	}

	return backend, window, model, nil
}

// BackendConfigured reports whether kind can serve requests.
func (s *Service) BackendConfigured(kind domain.BackendKind) bool {
	_, _, _, err := s.backend(kind)

	return err == nil
}

func (s *Service) addHistory(ctx context.Context, chatID int64, text string, result *Result) int64 {
	if s.store == nil {
		return 0
	}

	entry := &domain.HistoryEntry{
		ChatID:         chatID,
		CreatedAt:      s.now(),
		OriginalText:   text,
		Summary:        result.Summary,
		Backend:        result.Backend,
		Model:          result.Model,
		Style:          result.Style,
		ChunkCount:     result.Chunks,
		ProcessingTime: result.Stats.ProcessingTime,
	}

	id, err := s.store.AddHistoryEntry(ctx, entry, s.cfg.HistoryLimit)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to add history entry",
			"error", err,
			"chatID", chatID)

		return 0
	}

	return id
}

// Models returns the cached Ollama model list, loading it on first use.
func (s *Service) Models(ctx context.Context) []string {
	s.modelsMu.RLock()
	names := s.modelList
	s.modelsMu.RUnlock()

	if len(names) > 0 {
		return slices.Clone(names)
	}

	return s.RefreshModels(ctx)
}

// RefreshModels reloads the Ollama model list. The fallback list is used when
// the server cannot be reached.
func (s *Service) RefreshModels(ctx context.Context) []string {
	var names []string

	if s.models != nil {
		models, err := s.models.ListModels(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to list models",
				"error", err)
		}
		names = models
	}

	if len(names) == 0 {
		names = ollama.FallbackModels()
	}

	s.modelsMu.Lock()
	s.modelList = names
	s.modelsMu.Unlock()

	return slices.Clone(names)
}

func (s *Service) History(ctx context.Context, chatID int64) ([]domain.HistoryEntry, error) {
	entries, err := s.store.GetHistory(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return entries, nil
}

func (s *Service) ClearHistory(ctx context.Context, chatID int64) (int64, error) {
	n, err := s.store.ClearHistory(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}

	return n, nil
}

// PruneHistory removes entries older than retention in all chats.
func (s *Service) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.store.PruneHistory(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	return n, nil
}

// Export renders a history entry as a Markdown report and returns its file
// name and contents.
func (s *Service) Export(ctx context.Context, chatID int64, entryID int64) (string, []byte, error) {
	entry, err := s.store.GetHistoryEntry(ctx, chatID, entryID)
	if err != nil {
		return "", nil, fmt.Errorf("get history entry: %w", err)
	}

	st := stats.Compute(entry.OriginalText, entry.Summary, entry.ProcessingTime)
	report := stats.Report(stats.ReportInput{
		Original:    entry.OriginalText,
		Summary:     entry.Summary,
		Model:       entry.Backend.String() + "/" + entry.Model,
		StyleTitle:  entry.Style.Title(),
		GeneratedAt: entry.CreatedAt,
		Stats:       st,
	})

	return stats.ReportFileName(entry.CreatedAt), []byte(report), nil
}

func (s *Service) Settings(ctx context.Context, chatID int64) (*domain.ChatSettings, error) {
	settings, err := s.store.GetChatSettingsWithDefault(ctx, chatID, s.cfg.Defaults)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return settings, nil
}

// SaveSettings validates and stores settings. The minimum length is adjusted
// the same way Summarize adjusts it.
func (s *Service) SaveSettings(ctx context.Context, settings *domain.ChatSettings) error {
	budget, err := NormalizeBudget(settings.MaxWords, settings.MinWords)
	if err != nil {
		return err
	}

	if _, err = domain.ParseStyle(string(settings.Style)); err != nil {
		return err
	}

	settings.MaxWords = budget.MaxWords
	settings.MinWords = budget.MinWords

	if err = s.store.UpsertChatSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	return nil
}
