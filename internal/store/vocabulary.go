package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rbright/parla/internal/dictionary"
	"github.com/rbright/parla/internal/exchange"
)

// Vocabulary returns every hint word in insertion order.
func (s *Store) Vocabulary(ctx context.Context) ([]dictionary.VocabularyEntry, error) {
	return loadVocabulary(ctx, s.db)
}

// AddWord stores a vocabulary entry, rejecting case-insensitive duplicates.
func (s *Store) AddWord(ctx context.Context, entry dictionary.VocabularyEntry) error {
	return s.insertWord(ctx, s.db, entry)
}

// DeleteWord removes the entry matching word case-insensitively.
func (s *Store) DeleteWord(ctx context.Context, word string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM vocabulary WHERE word_key = ?`, dictionary.WordKey(word))
	if err != nil {
		return fmt.Errorf("delete word: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("word %q", word))
}

// Snapshot loads the active rules and vocabulary in one read transaction.
func (s *Store) Snapshot(ctx context.Context) (dictionary.Snapshot, error) {
	var snapshot dictionary.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rules, err := loadRules(ctx, tx)
		if err != nil {
			return err
		}
		words, err := loadVocabulary(ctx, tx)
		if err != nil {
			return err
		}
		snapshot = dictionary.Snapshot{Rules: rules, Vocabulary: words}
		return nil
	})
	return snapshot, err
}

// ApplyChanges persists a planned import atomically.
func (s *Store) ApplyChanges(ctx context.Context, changes exchange.Changes) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if changes.Reset {
			for _, stmt := range []string{
				`DELETE FROM rule_originals`,
				`DELETE FROM replacement_rules`,
				`DELETE FROM vocabulary`,
			} {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("reset dictionary: %w", err)
				}
			}
		}
		for _, rule := range changes.Rules {
			if err := s.insertRule(ctx, tx, rule); err != nil {
				return err
			}
		}
		for _, entry := range changes.Vocabulary {
			if err := s.insertWord(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertWord(ctx context.Context, exec executor, entry dictionary.VocabularyEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := exec.ExecContext(ctx,
		`INSERT INTO vocabulary (id, word, word_key, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID.String(), entry.Word, entry.Key(), s.timestamp(),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateWord, entry.Word)
		}
		return fmt.Errorf("insert word: %w", err)
	}
	return nil
}

func loadVocabulary(ctx context.Context, exec executor) ([]dictionary.VocabularyEntry, error) {
	rows, err := exec.QueryContext(ctx, `SELECT id, word FROM vocabulary ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	var entries []dictionary.VocabularyEntry
	for rows.Next() {
		var rawID, word string
		if err := rows.Scan(&rawID, &word); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse word id %q: %w", rawID, err)
		}
		entries = append(entries, dictionary.VocabularyEntry{ID: id, Word: word})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vocabulary: %w", err)
	}
	return entries, nil
}
