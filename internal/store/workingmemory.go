package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertWorkingMemory inserts a short-lived working-memory row.
func (s *Store) InsertWorkingMemory(ctx context.Context, w *WorkingMemory) error {
	embJSON, err := json.Marshal(w.Embedding)
	if err != nil {
		return fmt.Errorf("InsertWorkingMemory: marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO working_memory
		(id, content, embedding, expiry, access_count, created_at) VALUES (?,?,?,?,?,?)`,
		w.ID, w.Content, string(embJSON), w.Expiry, w.AccessCount, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertWorkingMemory: %w", err)
	}
	return nil
}

func scanWorkingMemory(row interface{ Scan(...any) error }) (*WorkingMemory, error) {
	var w WorkingMemory
	var embJSON sql.NullString
	if err := row.Scan(&w.ID, &w.Content, &embJSON, &w.Expiry, &w.AccessCount, &w.CreatedAt); err != nil {
		return nil, err
	}
	if embJSON.Valid && embJSON.String != "" && embJSON.String != "null" {
		if err := json.Unmarshal([]byte(embJSON.String), &w.Embedding); err != nil {
			return nil, fmt.Errorf("scanWorkingMemory: unmarshal embedding: %w", err)
		}
	}
	return &w, nil
}

// ListActiveWorkingMemory returns every working-memory row not yet expired.
func (s *Store) ListActiveWorkingMemory(ctx context.Context, asOf time.Time) ([]*WorkingMemory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, embedding, expiry, access_count, created_at
		FROM working_memory WHERE expiry > ? ORDER BY created_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("ListActiveWorkingMemory: %w", err)
	}
	defer rows.Close()
	var out []*WorkingMemory
	for rows.Next() {
		w, err := scanWorkingMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActiveWorkingMemory: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListExpiredWorkingMemory returns every working-memory row past expiry, the
// candidate set for the maintenance pass's promote-or-discard step.
func (s *Store) ListExpiredWorkingMemory(ctx context.Context, asOf time.Time) ([]*WorkingMemory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, embedding, expiry, access_count, created_at
		FROM working_memory WHERE expiry <= ? ORDER BY created_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("ListExpiredWorkingMemory: %w", err)
	}
	defer rows.Close()
	var out []*WorkingMemory
	for rows.Next() {
		w, err := scanWorkingMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListExpiredWorkingMemory: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// TouchWorkingMemory increments a working-memory row's access count.
func (s *Store) TouchWorkingMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE working_memory SET access_count = access_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("TouchWorkingMemory: %w", err)
	}
	return mustAffectOne(res, "TouchWorkingMemory", id)
}

// DeleteWorkingMemory removes a working-memory row after it has been
// promoted or discarded.
func (s *Store) DeleteWorkingMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM working_memory WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteWorkingMemory: %w", err)
	}
	return nil
}

// DeleteExpiredWorkingMemory purges every row past expiry in one statement,
// used once their promotion candidates have already been extracted.
func (s *Store) DeleteExpiredWorkingMemory(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM working_memory WHERE expiry <= ?`, asOf)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredWorkingMemory: %w", err)
	}
	return res.RowsAffected()
}
