package service

import (
	"testing"
	"time"

	"textdigest/internal/chunker"
	"textdigest/internal/domain"
)

func TestSummaryCacheGetSet(t *testing.T) {
	cache := newSummaryCache(2)
	if cache == nil {
		t.Fatalf("expected cache instance")
	}

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.set("key", cachedSummary{summary: "value", chunks: 2}, now.Add(time.Hour), now)

	got, ok := cache.get("key", now)
	if !ok {
		t.Fatalf("expected cached summary to be present")
	}

	if got.summary != "value" || got.chunks != 2 {
		t.Fatalf("unexpected cached summary: %+v", got)
	}
}

func TestSummaryCacheDisabled(t *testing.T) {
	cache := newSummaryCache(0)
	if cache != nil {
		t.Fatalf("expected nil cache for zero capacity")
	}

	now := time.Now()
	cache.set("key", cachedSummary{summary: "value"}, now.Add(time.Hour), now)

	if _, ok := cache.get("key", now); ok {
		t.Fatalf("expected disabled cache to miss")
	}
}

func TestSummaryCacheExpiresEntries(t *testing.T) {
	cache := newSummaryCache(2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.set("key", cachedSummary{summary: "value"}, now.Add(time.Minute), now)

	if _, ok := cache.get("key", now.Add(2*time.Minute)); ok {
		t.Fatalf("expected cache entry to expire")
	}

	if cache.len() != 0 {
		t.Fatalf("expected expired cache entry to be removed")
	}
}

func TestSummaryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newSummaryCache(2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)

	cache.set("a", cachedSummary{summary: "summary-a"}, expiresAt, now)
	cache.set("b", cachedSummary{summary: "summary-b"}, expiresAt, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected entry a to exist before eviction check")
	}

	cache.set("c", cachedSummary{summary: "summary-c"}, expiresAt, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected entry a to remain after evicting least recently used")
	}

	if _, ok := cache.get("b", now); ok {
		t.Fatalf("expected entry b to be evicted")
	}

	if _, ok := cache.get("c", now); !ok {
		t.Fatalf("expected entry c to be cached")
	}
}

func TestSummaryCacheKeyDependsOnSettings(t *testing.T) {
	settings := domain.ChatSettings{Style: domain.StyleGeneral}
	budget := chunker.Budget{MaxWords: 150, MinWords: 50}

	base := summaryCacheKey(domain.BackendOllama, "llama3.2", settings, budget, "text")

	if base != summaryCacheKey(domain.BackendOllama, "llama3.2", settings, budget, "text") {
		t.Fatalf("expected stable key")
	}

	other := settings
	other.Instructions = "be brief"

	for name, key := range map[string]string{
		"backend":      summaryCacheKey(domain.BackendOpenAI, "llama3.2", settings, budget, "text"),
		"model":        summaryCacheKey(domain.BackendOllama, "mistral", settings, budget, "text"),
		"instructions": summaryCacheKey(domain.BackendOllama, "llama3.2", other, budget, "text"),
		"budget":       summaryCacheKey(domain.BackendOllama, "llama3.2", settings, chunker.Budget{MaxWords: 100}, "text"),
		"text":         summaryCacheKey(domain.BackendOllama, "llama3.2", settings, budget, "other text"),
	} {
		if key == base {
			t.Fatalf("expected key to change with %s", name)
		}
	}
}
