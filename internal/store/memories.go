package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// InsertMemory inserts a new memory row. It validates the embedding
// dimension against Store.dim unless the embedding is nil (accepted with a
// null-embedding sentinel for callers that can tolerate late population).
func (s *Store) InsertMemory(ctx context.Context, m *Memory) error {
	if m.Embedding != nil && len(m.Embedding) != s.dim {
		return substrateerr.Corruption("InsertMemory", fmt.Errorf("embedding dim %d != %d", len(m.Embedding), s.dim))
	}
	embJSON, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("InsertMemory: marshal embedding: %w", err)
	}
	srcJSON, err := json.Marshal(m.SourceAttribution)
	if err != nil {
		return fmt.Errorf("InsertMemory: marshal source_attribution: %w", err)
	}
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("InsertMemory: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO memories
		(id, kind, content, embedding, importance, decay_rate, access_count,
		 created_at, updated_at, last_accessed, status, trust_level, source_attribution, metadata)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Kind, m.Content, string(embJSON), m.Importance, m.DecayRate, m.AccessCount,
		m.CreatedAt, m.UpdatedAt, m.LastAccessed, m.Status, m.TrustLevel, string(srcJSON), string(metaJSON))
	if err != nil {
		return fmt.Errorf("InsertMemory: %w", err)
	}
	return nil
}

func scanMemory(row interface{ Scan(...any) error }) (*Memory, error) {
	var m Memory
	var embJSON, srcJSON, metaJSON sql.NullString
	err := row.Scan(&m.ID, &m.Kind, &m.Content, &embJSON, &m.Importance, &m.DecayRate, &m.AccessCount,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessed, &m.Status, &m.TrustLevel, &srcJSON, &metaJSON)
	if err != nil {
		return nil, err
	}
	if embJSON.Valid && embJSON.String != "" && embJSON.String != "null" {
		if err := json.Unmarshal([]byte(embJSON.String), &m.Embedding); err != nil {
			return nil, fmt.Errorf("scanMemory: unmarshal embedding: %w", err)
		}
	}
	if srcJSON.Valid && srcJSON.String != "" {
		if err := json.Unmarshal([]byte(srcJSON.String), &m.SourceAttribution); err != nil {
			return nil, fmt.Errorf("scanMemory: unmarshal source_attribution: %w", err)
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &m.Metadata); err != nil {
			return nil, fmt.Errorf("scanMemory: unmarshal metadata: %w", err)
		}
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	return &m, nil
}

const memoryCols = `id, kind, content, embedding, importance, decay_rate, access_count,
	created_at, updated_at, last_accessed, status, trust_level, source_attribution, metadata`

// GetMemory retrieves a memory by id.
func (s *Store) GetMemory(ctx context.Context, id string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetMemory: %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	return m, nil
}

// ListMemoriesByStatus returns every memory in the given status, optionally
// filtered by kind (nil means any kind).
func (s *Store) ListMemoriesByStatus(ctx context.Context, status Status, kinds []Kind) ([]*Memory, error) {
	query := `SELECT ` + memoryCols + ` FROM memories WHERE status = ?`
	args := []any{status}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListMemoriesByStatus: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanMemories: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// UpdateMemoryTrust updates trust_level and source_attribution, used by
// sync_memory_trust.
func (s *Store) UpdateMemoryTrust(ctx context.Context, id string, trust float64, src SourceAttribution) error {
	srcJSON, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("UpdateMemoryTrust: marshal: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET trust_level = ?, source_attribution = ?, updated_at = ? WHERE id = ?`,
		trust, string(srcJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("UpdateMemoryTrust: %w", err)
	}
	return mustAffectOne(res, "UpdateMemoryTrust", id)
}

// UpdateMemoryMetadata replaces metadata wholesale.
func (s *Store) UpdateMemoryMetadata(ctx context.Context, id string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("UpdateMemoryMetadata: marshal: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(metaJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("UpdateMemoryMetadata: %w", err)
	}
	return mustAffectOne(res, "UpdateMemoryMetadata", id)
}

// UpdateMemoryContent replaces content and metadata together, used by
// attempt_worldview_transformation so the change_history entry and the new
// content land atomically.
func (s *Store) UpdateMemoryContent(ctx context.Context, id, content string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("UpdateMemoryContent: marshal: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET content = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		content, string(metaJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("UpdateMemoryContent: %w", err)
	}
	return mustAffectOne(res, "UpdateMemoryContent", id)
}

// UpdateMemoryStatus transitions a memory's status.
func (s *Store) UpdateMemoryStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("UpdateMemoryStatus: %w", err)
	}
	return mustAffectOne(res, "UpdateMemoryStatus", id)
}

// TouchMemory updates last_accessed and increments access_count, then
// applies a diminishing-returns importance nudge.
func (s *Store) TouchMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories
		SET access_count = access_count + 1,
		    last_accessed = ?,
		    importance = importance + (1.0 - importance) * 0.02
		WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("TouchMemory: %w", err)
	}
	return mustAffectOne(res, "TouchMemory", id)
}

// DeleteMemory removes a memory row. Callers must detach the graph node
// first (write discipline: table row last on delete, see §9).
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteMemory: %w", err)
	}
	return nil
}

func mustAffectOne(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", op, id, sql.ErrNoRows)
	}
	return nil
}
