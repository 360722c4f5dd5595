package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"textdigest/internal/bot"
	"textdigest/internal/config"
	"textdigest/internal/database"
	"textdigest/internal/domain"
	"textdigest/internal/extract"
	"textdigest/internal/ollama"
	"textdigest/internal/scheduler"
	"textdigest/internal/service"
	"textdigest/internal/summarizer"
)

const fetchTimeout = 30 * time.Second

func main() {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := summarizer.NewMetrics(reg)

	ollamaClient := ollama.New(cfg.OllamaBaseURL, 0, log)
	backends, breakers := initBackends(ctx, cfg, ollamaClient, metrics, log)

	openAIModel := cfg.OpenAIModel
	if openAIModel == "" {
		openAIModel = string(summarizer.DefaultOpenAIModel)
	}

	svc := service.New(
		service.Config{
			WindowWords:       cfg.WindowWords,
			OpenAIWindowWords: cfg.OpenAIWindowWords,
			BackendTimeout:    cfg.BackendTimeout,
			MinTextChars:      cfg.MinTextChars,
			HistoryLimit:      cfg.HistoryLimit,
			CacheMaxEntries:   cfg.SummaryCacheMaxEntries,
			CacheTTL:          cfg.SummaryCacheTTL,
			OllamaModel:       cfg.OllamaModel,
			OpenAIModel:       openAIModel,
			Defaults:          cfg.DefaultSettings(),
		},
		db,
		backends,
		ollamaClient,
		metrics,
		log,
	)

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, reg, breakers, log)
	}

	fetcher := extract.NewFetcher(fetchTimeout, cfg.MaxUploadBytes, log)

	botInst, err := bot.New(
		bot.Config{
			Token:          cfg.Token,
			AllowedUsers:   cfg.AllowedUsers,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
		svc,
		fetcher,
		log,
	)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers),
		"defaultBackend", cfg.DefaultBackend.String())

	sched := scheduler.New(ctx, svc, svc, cfg.HistoryRetention, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"pruneSpec", scheduler.HourlyPruneSpec,
			"modelRefreshSpec", scheduler.ModelRefreshSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"pruneSpec", scheduler.HourlyPruneSpec,
		"modelRefreshSpec", scheduler.ModelRefreshSpec,
		"historyRetention", cfg.HistoryRetention.String())

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}

// initBackends builds the summarizers of all configured backends. OpenAI is
// left out when no API key is set.
func initBackends(
	ctx context.Context,
	cfg config.Config,
	ollamaClient *ollama.Client,
	metrics *summarizer.Metrics,
	log *slog.Logger,
) (service.Backends, map[string]*summarizer.Breaker) {
	breakers := make(map[string]*summarizer.Breaker)

	wrap := func(kind domain.BackendKind, s summarizer.Summarizer) summarizer.Summarizer {
		b := summarizer.WithBreaker(
			summarizer.DefaultBreakerConfig(kind.String()),
			summarizer.Instrument(kind, s, metrics),
			log,
		)
		breakers[kind.String()] = b

		return b
	}

	backends := service.Backends{
		Ollama: wrap(domain.BackendOllama, summarizer.NewOllamaSummarizer(ollamaClient, cfg.OllamaModel)),
	}
	log.InfoContext(ctx, "Ollama summarizer is initialized",
		"baseURL", cfg.OllamaBaseURL,
		"model", cfg.OllamaModel)

	if cfg.OpenAIAPIKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so OpenAI backend is disabled",
			"envVar", "OPENAI_API_KEY")

		return backends, breakers
	}

	openAISummarizer, err := summarizer.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so OpenAI backend is disabled",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return backends, breakers
	}

	backends.OpenAI = wrap(domain.BackendOpenAI, openAISummarizer)
	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return backends, breakers
}
