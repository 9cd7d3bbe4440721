package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertEpisode opens a new episode row with ended_at left null.
func (s *Store) InsertEpisode(ctx context.Context, ep *Episode) error {
	embJSON, err := json.Marshal(ep.SummaryEmbedding)
	if err != nil {
		return fmt.Errorf("InsertEpisode: marshal summary_embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO episodes
		(id, started_at, ended_at, summary, summary_embedding) VALUES (?,?,?,?,?)`,
		ep.ID, ep.StartedAt, nullTime(ep.EndedAt), ep.Summary, string(embJSON))
	if err != nil {
		return fmt.Errorf("InsertEpisode: %w", err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanEpisode(row interface{ Scan(...any) error }) (*Episode, error) {
	var ep Episode
	var endedAt sql.NullTime
	var summary sql.NullString
	var embJSON sql.NullString
	if err := row.Scan(&ep.ID, &ep.StartedAt, &endedAt, &summary, &embJSON); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		ep.EndedAt = endedAt.Time
	}
	ep.Summary = summary.String
	if embJSON.Valid && embJSON.String != "" && embJSON.String != "null" {
		if err := json.Unmarshal([]byte(embJSON.String), &ep.SummaryEmbedding); err != nil {
			return nil, fmt.Errorf("scanEpisode: unmarshal summary_embedding: %w", err)
		}
	}
	return &ep, nil
}

// GetEpisode retrieves an episode by id.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, ended_at, summary, summary_embedding
		FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetEpisode: %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("GetEpisode: %w", err)
	}
	return ep, nil
}

// CurrentEpisode returns the most recently started episode with no ended_at,
// or nil if none is open.
func (s *Store) CurrentEpisode(ctx context.Context) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, ended_at, summary, summary_embedding
		FROM episodes WHERE ended_at IS NULL ORDER BY started_at DESC LIMIT 1`)
	ep, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("CurrentEpisode: %w", err)
	}
	return ep, nil
}

// CloseEpisode finalizes an episode with its summary and summary embedding.
func (s *Store) CloseEpisode(ctx context.Context, id string, endedAt time.Time, summary string, embedding Embedding) error {
	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("CloseEpisode: marshal: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE episodes SET ended_at = ?, summary = ?, summary_embedding = ?
		WHERE id = ?`, endedAt, summary, string(embJSON), id)
	if err != nil {
		return fmt.Errorf("CloseEpisode: %w", err)
	}
	return mustAffectOne(res, "CloseEpisode", id)
}

// ListRecentEpisodes returns the most recent closed episodes, newest first.
func (s *Store) ListRecentEpisodes(ctx context.Context, limit int) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, ended_at, summary, summary_embedding
		FROM episodes WHERE ended_at IS NOT NULL ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecentEpisodes: %w", err)
	}
	defer rows.Close()
	var out []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecentEpisodes: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}
