package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"textdigest/internal/database"
	"textdigest/internal/domain"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"), log)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})

	return db
}

func historyEntry(chatID int64, summary string, createdAt time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ChatID:         chatID,
		CreatedAt:      createdAt,
		OriginalText:   "original " + summary,
		Summary:        summary,
		Backend:        domain.BackendOllama,
		Model:          "llama3.2:latest",
		Style:          domain.StyleGeneral,
		ChunkCount:     1,
		ProcessingTime: 1500 * time.Millisecond,
	}
}

func TestNewIsIdempotent(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "test.db")

	for range 2 {
		db, err := database.New(context.Background(), path, log)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		if err = db.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
	}
}

func TestAddHistoryEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	createdAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := historyEntry(42, "summary", createdAt)
	entry.Backend = domain.BackendOpenAI
	entry.Style = domain.StyleTimeline
	entry.ChunkCount = 3

	id, err := db.AddHistoryEntry(ctx, entry, 10)
	if err != nil {
		t.Fatalf("AddHistoryEntry returned error: %v", err)
	}
	if id == 0 || entry.ID != id {
		t.Fatalf("expected entry ID to be set, got id=%d entry.ID=%d", id, entry.ID)
	}

	got, err := db.GetHistoryEntry(ctx, 42, id)
	if err != nil {
		t.Fatalf("GetHistoryEntry returned error: %v", err)
	}

	if got.Summary != "summary" || got.OriginalText != "original summary" {
		t.Fatalf("unexpected texts: %+v", got)
	}
	if got.Backend != domain.BackendOpenAI || got.Style != domain.StyleTimeline {
		t.Fatalf("unexpected backend or style: %+v", got)
	}
	if got.ChunkCount != 3 || got.ProcessingTime != 1500*time.Millisecond {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected created at %v, got %v", createdAt, got.CreatedAt)
	}
}

func TestAddHistoryEntryEvictsBeyondLimit(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 12 {
		entry := historyEntry(1, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
		if _, err := db.AddHistoryEntry(ctx, entry, database.DefaultHistoryLimit); err != nil {
			t.Fatalf("AddHistoryEntry returned error: %v", err)
		}
	}

	if _, err := db.AddHistoryEntry(ctx, historyEntry(2, "other chat", base), 0); err != nil {
		t.Fatalf("AddHistoryEntry returned error: %v", err)
	}

	entries, err := db.GetHistory(ctx, 1)
	if err != nil {
		t.Fatalf("GetHistory returned error: %v", err)
	}

	if len(entries) != database.DefaultHistoryLimit {
		t.Fatalf("expected %d entries, got %d", database.DefaultHistoryLimit, len(entries))
	}
	if entries[0].Summary != "l" || entries[len(entries)-1].Summary != "c" {
		t.Fatalf("expected newest first from l to c, got %q..%q",
			entries[0].Summary, entries[len(entries)-1].Summary)
	}

	other, err := db.GetHistory(ctx, 2)
	if err != nil {
		t.Fatalf("GetHistory returned error: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("expected other chat to keep its entry, got %d", len(other))
	}
}

func TestGetHistoryEntryScopedToChat(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	id, err := db.AddHistoryEntry(ctx, historyEntry(1, "mine", time.Now()), 10)
	if err != nil {
		t.Fatalf("AddHistoryEntry returned error: %v", err)
	}

	_, err = db.GetHistoryEntry(ctx, 2, id)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearAndPruneHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	now := time.Now()
	old := now.Add(-48 * time.Hour)

	for _, entry := range []*domain.HistoryEntry{
		historyEntry(1, "old", old),
		historyEntry(1, "new", now),
		historyEntry(2, "old", old),
		historyEntry(3, "new", now),
	} {
		if _, err := db.AddHistoryEntry(ctx, entry, 10); err != nil {
			t.Fatalf("AddHistoryEntry returned error: %v", err)
		}
	}

	pruned, err := db.PruneHistory(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneHistory returned error: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected 2 pruned entries, got %d", pruned)
	}

	cleared, err := db.ClearHistory(ctx, 1)
	if err != nil {
		t.Fatalf("ClearHistory returned error: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared entry, got %d", cleared)
	}

	entries, err := db.GetHistory(ctx, 3)
	if err != nil {
		t.Fatalf("GetHistory returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected chat 3 to keep its entry, got %d", len(entries))
	}
}

func TestChatSettings(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	defaults := domain.ChatSettings{
		Backend:  domain.BackendOllama,
		Style:    domain.StyleGeneral,
		MaxWords: 150,
		MinWords: 50,
	}

	got, err := db.GetChatSettingsWithDefault(ctx, 7, defaults)
	if err != nil {
		t.Fatalf("GetChatSettingsWithDefault returned error: %v", err)
	}
	if got.ChatID != 7 || got.MaxWords != 150 || got.Backend != domain.BackendOllama {
		t.Fatalf("expected defaults bound to chat, got %+v", got)
	}

	want := domain.ChatSettings{
		ChatID:       7,
		Backend:      domain.BackendOpenAI,
		Model:        "gpt-5-mini",
		Style:        domain.StyleQuestions,
		MaxWords:     300,
		MinWords:     100,
		Stream:       true,
		Instructions: "Focus on numbers.",
	}

	if err = db.UpsertChatSettings(ctx, &want); err != nil {
		t.Fatalf("UpsertChatSettings returned error: %v", err)
	}

	want.MaxWords = 400
	if err = db.UpsertChatSettings(ctx, &want); err != nil {
		t.Fatalf("UpsertChatSettings returned error: %v", err)
	}

	got, err = db.GetChatSettingsWithDefault(ctx, 7, defaults)
	if err != nil {
		t.Fatalf("GetChatSettingsWithDefault returned error: %v", err)
	}
	if *got != want {
		t.Fatalf("expected %+v, got %+v", want, *got)
	}
}
