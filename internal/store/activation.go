package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertMemoryActivation records a feeling-of-knowing probe result with a
// TTL; background search promotion consults these rows before they expire.
func (s *Store) InsertMemoryActivation(ctx context.Context, a *MemoryActivation) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO memory_activation
		(id, query, estimated_matches, created_at, expires_at) VALUES (?,?,?,?,?)`,
		a.ID, a.Query, a.EstimatedMatches, a.CreatedAt, a.ExpiresAt)
	if err != nil {
		return fmt.Errorf("InsertMemoryActivation: %w", err)
	}
	return nil
}

func scanMemoryActivation(row interface{ Scan(...any) error }) (*MemoryActivation, error) {
	var a MemoryActivation
	if err := row.Scan(&a.ID, &a.Query, &a.EstimatedMatches, &a.CreatedAt, &a.ExpiresAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetMemoryActivation retrieves an activation probe by id.
func (s *Store) GetMemoryActivation(ctx context.Context, id string) (*MemoryActivation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, query, estimated_matches, created_at, expires_at
		FROM memory_activation WHERE id = ?`, id)
	a, err := scanMemoryActivation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetMemoryActivation: %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemoryActivation: %w", err)
	}
	return a, nil
}

// ListLiveMemoryActivations returns every activation probe not yet expired,
// the candidate set process_background_searches iterates.
func (s *Store) ListLiveMemoryActivations(ctx context.Context, asOf time.Time) ([]*MemoryActivation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, query, estimated_matches, created_at, expires_at
		FROM memory_activation WHERE expires_at > ? ORDER BY created_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("ListLiveMemoryActivations: %w", err)
	}
	defer rows.Close()
	var out []*MemoryActivation
	for rows.Next() {
		a, err := scanMemoryActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("ListLiveMemoryActivations: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteMemoryActivation removes a probe once it has been resolved (search
// completed, or decayed past relevance).
func (s *Store) DeleteMemoryActivation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_activation WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteMemoryActivation: %w", err)
	}
	return nil
}

// PruneExpiredMemoryActivations purges every row past its TTL in one
// statement, part of the maintenance pass's cleanup step.
func (s *Store) PruneExpiredMemoryActivations(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_activation WHERE expires_at <= ?`, asOf)
	if err != nil {
		return 0, fmt.Errorf("PruneExpiredMemoryActivations: %w", err)
	}
	return res.RowsAffected()
}
