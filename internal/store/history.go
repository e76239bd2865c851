package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry records one processed transcript.
type HistoryEntry struct {
	ID               int64
	CreatedAt        time.Time
	RawText          string
	DictionaryText   string
	FinalText        string
	AppliedRules     []uuid.UUID
	Enhanced         bool
	EnhancementError string
}

// RecordHistory appends an entry and trims the table to the configured limit.
func (s *Store) RecordHistory(ctx context.Context, entry HistoryEntry) (int64, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	ids := make([]string, 0, len(entry.AppliedRules))
	for _, id := range entry.AppliedRules {
		ids = append(ids, id.String())
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO history (created_at, raw_text, dictionary_text, final_text, applied_rules, enhanced, enhancement_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.RawText,
		entry.DictionaryText,
		entry.FinalText,
		strings.Join(ids, ","),
		entry.Enhanced,
		entry.EnhancementError,
	)
	if err != nil {
		return 0, fmt.Errorf("insert history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if s.historyLimit > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`,
			s.historyLimit,
		); err != nil {
			return id, fmt.Errorf("prune history: %w", err)
		}
	}
	return id, nil
}

// History returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, raw_text, dictionary_text, final_text, applied_rules, enhanced, enhancement_error
		FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry      HistoryEntry
			createdAt  string
			appliedIDs string
		)
		if err := rows.Scan(
			&entry.ID,
			&createdAt,
			&entry.RawText,
			&entry.DictionaryText,
			&entry.FinalText,
			&appliedIDs,
			&entry.Enhanced,
			&entry.EnhancementError,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", createdAt, err)
		}
		for _, raw := range strings.Split(appliedIDs, ",") {
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("parse history rule id %q: %w", raw, err)
			}
			entry.AppliedRules = append(entry.AppliedRules, id)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// ClearHistory deletes every history entry and returns how many were removed.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return result.RowsAffected()
}
