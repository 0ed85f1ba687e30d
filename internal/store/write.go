package store

import (
	"context"
	"fmt"
)

// WriteDrain inserts a drain and its evaluations in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - a drain ID already in the
// journal is silently skipped along with its evaluations.
func (s *Store) WriteDrain(ctx context.Context, d Drain) error {
	changes := d.Changes
	if changes == "" {
		changes = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write drain: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO drains (id, ord, queued, evaluated, error, changes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, d.ID, d.Ord, d.Queued, d.Evaluated, d.Error, changes)
	if err != nil {
		return fmt.Errorf("write drain %s: %w", d.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for _, ev := range d.Evaluations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations (drain_id, seq, rule, condition, acted, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`, d.ID, ev.Seq, ev.Rule, ev.Condition, ev.Acted, ev.Error)
		if err != nil {
			return fmt.Errorf("write evaluation %s/%d: %w", d.ID, ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write drain %s: %w", d.ID, err)
	}
	return nil
}
