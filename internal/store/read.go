package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadDrains returns every drain in ord order, without evaluations.
//
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadDrains(ctx context.Context) ([]Drain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ord, queued, evaluated, error, changes
		FROM drains
		ORDER BY ord ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query drains: %w", err)
	}
	defer rows.Close()

	drains := []Drain{}
	for rows.Next() {
		var d Drain
		if err := rows.Scan(&d.ID, &d.Ord, &d.Queued, &d.Evaluated, &d.Error, &d.Changes); err != nil {
			return nil, fmt.Errorf("scan drain: %w", err)
		}
		drains = append(drains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drains: %w", err)
	}
	return drains, nil
}

// ReadDrain retrieves one drain with its evaluations.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDrain(ctx context.Context, id string) (Drain, error) {
	var d Drain
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ord, queued, evaluated, error, changes
		FROM drains
		WHERE id = ?
	`, id).Scan(&d.ID, &d.Ord, &d.Queued, &d.Evaluated, &d.Error, &d.Changes)
	if err != nil {
		return Drain{}, err
	}

	d.Evaluations, err = s.queryEvaluations(ctx, `
		SELECT drain_id, seq, rule, condition, acted, error
		FROM evaluations
		WHERE drain_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Drain{}, err
	}
	return d, nil
}

// ReadRuleEvaluations returns every evaluation of rule across all drains,
// in seq order.
func (s *Store) ReadRuleEvaluations(ctx context.Context, rule string) ([]Evaluation, error) {
	return s.queryEvaluations(ctx, `
		SELECT drain_id, seq, rule, condition, acted, error
		FROM evaluations
		WHERE rule = ?
		ORDER BY seq ASC, drain_id COLLATE BINARY ASC
	`, rule)
}

// MaxOrd returns the highest drain ord in the journal, or 0 when empty.
func (s *Store) MaxOrd(ctx context.Context) (int64, error) {
	var ord sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(ord) FROM drains`).Scan(&ord); err != nil {
		return 0, fmt.Errorf("query max ord: %w", err)
	}
	return ord.Int64, nil
}

// MaxSeq returns the highest evaluation seq in the journal, or 0 when
// empty. Hosts resume the engine clock from it.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM evaluations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) queryEvaluations(ctx context.Context, query string, args ...any) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evals := []Evaluation{}
	for rows.Next() {
		var ev Evaluation
		if err := rows.Scan(&ev.DrainID, &ev.Seq, &ev.Rule, &ev.Condition, &ev.Acted, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evals = append(evals, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evals, nil
}
