package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"textdigest/internal/domain"
)

const historyColumns = `id, chat_id, created_at, original_text, summary,
	backend, model, style, chunk_count, processing_ms`

// AddHistoryEntry stores entry and evicts everything beyond the most recent
// limit entries of the same chat. It returns the new entry ID.
func (d *Database) AddHistoryEntry(
	ctx context.Context,
	entry *domain.HistoryEntry,
	limit int,
) (id int64, err error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rollbackErr))
			}
		}
	}()

	insert := `insert into history (chat_id, created_at, original_text, summary,
	backend, model, style, chunk_count, processing_ms)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := tx.ExecContext(ctx, insert,
		entry.ChatID,
		createdAt.UnixMilli(),
		entry.OriginalText,
		entry.Summary,
		entry.Backend.String(),
		strings.TrimSpace(entry.Model),
		string(entry.Style),
		entry.ChunkCount,
		entry.ProcessingTime.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	if id, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("get entry id: %w", err)
	}

	evict := `delete from history
	where chat_id = ?
	and id not in (
		select id from history
		where chat_id = ?
		order by created_at desc, id desc
		limit ?
	)`

	if _, err = tx.ExecContext(ctx, evict, entry.ChatID, entry.ChatID, limit); err != nil {
		return 0, fmt.Errorf("evict entries: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = time.UnixMilli(createdAt.UnixMilli())

	return id, nil
}

// GetHistory returns the chat's entries, newest first.
func (d *Database) GetHistory(ctx context.Context, chatID int64) ([]domain.HistoryEntry, error) {
	query := `select ` + historyColumns + `
	from history
	where chat_id = ?
	order by created_at desc, id desc`

	rows, err := d.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"chatID", chatID,
				"operation", "GetHistory")
		}
	}()

	var entries []domain.HistoryEntry
	for rows.Next() {
		entry, scanErr := scanHistoryEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		entries = append(entries, *entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return entries, nil
}

func (d *Database) GetHistoryEntry(
	ctx context.Context,
	chatID int64,
	entryID int64,
) (*domain.HistoryEntry, error) {
	query := `select ` + historyColumns + `
	from history
	where chat_id = ? and id = ?`

	entry, err := scanHistoryEntry(d.db.QueryRowContext(ctx, query, chatID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history entry %d: %w", entryID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ClearHistory removes every entry of the chat and reports how many were removed.
func (d *Database) ClearHistory(ctx context.Context, chatID int64) (int64, error) {
	query := "delete from history where chat_id = ?"

	res, err := d.db.ExecContext(ctx, query, chatID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// PruneHistory removes entries created before the given time in all chats.
func (d *Database) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	query := "delete from history where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, before.UnixMilli())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// GetChatSettingsWithDefault returns the stored settings of the chat or a
// copy of defaults bound to chatID when none are stored.
func (d *Database) GetChatSettingsWithDefault(
	ctx context.Context,
	chatID int64,
	defaults domain.ChatSettings,
) (*domain.ChatSettings, error) {
	query := `select backend, model, style, max_words, min_words, stream, instructions
	from chat_settings
	where chat_id = ?`

	var (
		s       domain.ChatSettings
		backend string
		style   string
	)

	err := d.db.QueryRowContext(ctx, query, chatID).Scan(
		&backend,
		&s.Model,
		&style,
		&s.MaxWords,
		&s.MinWords,
		&s.Stream,
		&s.Instructions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		defaults.ChatID = chatID
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	s.ChatID = chatID

	if s.Backend, err = domain.ParseBackendKind(backend); err != nil {
		d.log.WarnContext(ctx, "Failed to parse stored backend",
			"error", err,
			"chatID", chatID)
		s.Backend = defaults.Backend
	}

	if s.Style, err = domain.ParseStyle(style); err != nil {
		d.log.WarnContext(ctx, "Failed to parse stored style",
			"error", err,
			"chatID", chatID)
		s.Style = defaults.Style
	}

	return &s, nil
}

func (d *Database) UpsertChatSettings(ctx context.Context, s *domain.ChatSettings) error {
	query := `insert into chat_settings
	(chat_id, backend, model, style, max_words, min_words, stream, instructions)
	values (?, ?, ?, ?, ?, ?, ?, ?)
	on conflict (chat_id) do update
	set backend = excluded.backend,
	model = excluded.model,
	style = excluded.style,
	max_words = excluded.max_words,
	min_words = excluded.min_words,
	stream = excluded.stream,
	instructions = excluded.instructions`

	_, err := d.db.ExecContext(ctx, query,
		s.ChatID,
		s.Backend.String(),
		strings.TrimSpace(s.Model),
		string(s.Style),
		s.MaxWords,
		s.MinWords,
		s.Stream,
		strings.TrimSpace(s.Instructions),
	)

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryEntry(row rowScanner) (*domain.HistoryEntry, error) {
	var (
		e            domain.HistoryEntry
		createdAt    int64
		backend      string
		style        string
		processingMS int64
	)

	err := row.Scan(
		&e.ID,
		&e.ChatID,
		&createdAt,
		&e.OriginalText,
		&e.Summary,
		&backend,
		&e.Model,
		&style,
		&e.ChunkCount,
		&processingMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if e.Backend, err = domain.ParseBackendKind(backend); err != nil {
		return nil, fmt.Errorf("parse backend: %w", err)
	}

	e.CreatedAt = time.UnixMilli(createdAt)
	e.Style = domain.Style(style)
	e.ProcessingTime = time.Duration(processingMS) * time.Millisecond

	return &e, nil
}
