package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rbright/parla/internal/dictionary"
)

// Rules returns every rule ordered by priority, then creation order.
func (s *Store) Rules(ctx context.Context) ([]dictionary.ReplacementRule, error) {
	return loadRules(ctx, s.db)
}

// Rule loads one rule by identifier.
func (s *Store) Rule(ctx context.Context, id uuid.UUID) (dictionary.ReplacementRule, error) {
	rules, err := loadRules(ctx, s.db)
	if err != nil {
		return dictionary.ReplacementRule{}, err
	}
	for _, rule := range rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return dictionary.ReplacementRule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
}

// ResolveRuleID expands a full identifier or a unique identifier prefix.
func (s *Store) ResolveRuleID(ctx context.Context, prefix string) (uuid.UUID, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return uuid.Nil, errors.New("rule identifier must not be empty")
	}
	if strings.ContainsFunc(prefix, func(r rune) bool {
		return !(r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}) {
		return uuid.Nil, fmt.Errorf("rule %q: %w", prefix, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM replacement_rules WHERE id LIKE ? LIMIT 2`, prefix+"%")
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve rule id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return uuid.Nil, err
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, err
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("rule %q: %w", prefix, ErrNotFound)
	case 1:
		return uuid.Parse(matches[0])
	default:
		return uuid.Nil, fmt.Errorf("rule %q: %w", prefix, ErrAmbiguousID)
	}
}

// NextPriority returns one past the highest stored priority.
func (s *Store) NextPriority(ctx context.Context) (int, error) {
	var next sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(priority) + 1 FROM replacement_rules`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next priority: %w", err)
	}
	if !next.Valid {
		return 0, nil
	}
	return int(next.Int64), nil
}

// CreateRule inserts a new rule.
func (s *Store) CreateRule(ctx context.Context, rule dictionary.ReplacementRule) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertRule(ctx, tx, rule)
	})
}

// UpdateRule replaces the originals, replacement, and priority of an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule dictionary.ReplacementRule) error {
	if len(rule.Originals) == 0 {
		return dictionary.ErrNoOriginals
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE replacement_rules SET replacement = ?, priority = ?, updated_at = ? WHERE id = ?`,
			rule.Replacement, rule.Priority, s.timestamp(), rule.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("update rule: %w", err)
		}
		if err := requireAffected(result, "rule "+rule.ID.String()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_originals WHERE rule_id = ?`, rule.ID.String()); err != nil {
			return fmt.Errorf("clear rule originals: %w", err)
		}
		return insertOriginals(ctx, tx, rule)
	})
}

// DeleteRule removes a rule and its originals.
func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_originals WHERE rule_id = ?`, id.String()); err != nil {
			return fmt.Errorf("delete rule originals: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM replacement_rules WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
		return requireAffected(result, "rule "+id.String())
	})
}

// MoveRule places a rule at index in the current ordering and renumbers every
// rule's priority to its position. Out-of-range indexes clamp to the ends.
func (s *Store) MoveRule(ctx context.Context, id uuid.UUID, index int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rules, err := loadRules(ctx, tx)
		if err != nil {
			return err
		}

		from := -1
		for i, rule := range rules {
			if rule.ID == id {
				from = i
				break
			}
		}
		if from < 0 {
			return fmt.Errorf("rule %s: %w", id, ErrNotFound)
		}

		moved := rules[from]
		rules = append(rules[:from], rules[from+1:]...)
		index = max(0, min(index, len(rules)))
		rules = append(rules[:index], append([]dictionary.ReplacementRule{moved}, rules[index:]...)...)

		for priority, rule := range rules {
			if _, err := tx.ExecContext(ctx,
				`UPDATE replacement_rules SET priority = ?, updated_at = ? WHERE id = ?`,
				priority, s.timestamp(), rule.ID.String(),
			); err != nil {
				return fmt.Errorf("renumber rule priority: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) insertRule(ctx context.Context, exec executor, rule dictionary.ReplacementRule) error {
	if len(rule.Originals) == 0 {
		return dictionary.ErrNoOriginals
	}
	now := s.timestamp()
	if _, err := exec.ExecContext(ctx,
		`INSERT INTO replacement_rules (id, replacement, priority, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rule.ID.String(), rule.Replacement, rule.Priority, now, now,
	); err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return insertOriginals(ctx, exec, rule)
}

func insertOriginals(ctx context.Context, exec executor, rule dictionary.ReplacementRule) error {
	for position, phrase := range rule.Originals {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO rule_originals (rule_id, position, phrase) VALUES (?, ?, ?)`,
			rule.ID.String(), position, phrase,
		); err != nil {
			return fmt.Errorf("insert rule original: %w", err)
		}
	}
	return nil
}

func loadRules(ctx context.Context, exec executor) ([]dictionary.ReplacementRule, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT r.id, r.replacement, r.priority, o.phrase
		FROM replacement_rules r
		JOIN rule_originals o ON o.rule_id = r.id
		ORDER BY r.priority, r.rowid, o.position`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var (
		rules   []dictionary.ReplacementRule
		current *dictionary.ReplacementRule
	)
	for rows.Next() {
		var (
			rawID, replacement, phrase string
			priority                   int
		)
		if err := rows.Scan(&rawID, &replacement, &priority, &phrase); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse rule id %q: %w", rawID, err)
		}
		if current == nil || current.ID != id {
			rules = append(rules, dictionary.ReplacementRule{ID: id, Replacement: replacement, Priority: priority})
			current = &rules[len(rules)-1]
		}
		current.Originals = append(current.Originals, phrase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}
