package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertConsentLog appends an immutable consent ledger row inside tx,
// carrying the verbatim raw_response so a human can always audit exactly
// what was returned, independent of how the substrate later interpreted it.
func InsertConsentLog(ctx context.Context, tx *sql.Tx, row *ConsentLogRow) error {
	memsJSON, err := json.Marshal(row.MemoriesReturned)
	if err != nil {
		return fmt.Errorf("InsertConsentLog: marshal memories_returned: %w", err)
	}
	rawJSON, err := json.Marshal(row.RawResponse)
	if err != nil {
		return fmt.Errorf("InsertConsentLog: marshal raw_response: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO consent_log
		(id, decision, signature, memories_returned, recorded_at, raw_response) VALUES (?,?,?,?,?,?)`,
		row.ID, row.Decision, row.Signature, string(memsJSON), row.RecordedAt, string(rawJSON))
	if err != nil {
		return fmt.Errorf("InsertConsentLog: %w", err)
	}
	return nil
}

// ListConsentLog returns the full consent ledger, oldest first.
func (s *Store) ListConsentLog(ctx context.Context) ([]*ConsentLogRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, decision, signature, memories_returned,
		recorded_at, raw_response FROM consent_log ORDER BY recorded_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("ListConsentLog: %w", err)
	}
	defer rows.Close()
	var out []*ConsentLogRow
	for rows.Next() {
		var r ConsentLogRow
		var memsJSON, rawJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Decision, &r.Signature, &memsJSON, &r.RecordedAt, &rawJSON); err != nil {
			return nil, fmt.Errorf("ListConsentLog: %w", err)
		}
		if memsJSON.Valid && memsJSON.String != "" {
			json.Unmarshal([]byte(memsJSON.String), &r.MemoriesReturned)
		}
		if rawJSON.Valid && rawJSON.String != "" {
			json.Unmarshal([]byte(rawJSON.String), &r.RawResponse)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// LatestConsentDecision returns the most recent consent decision, or nil if
// consent has never been recorded.
func (s *Store) LatestConsentDecision(ctx context.Context) (*ConsentLogRow, error) {
	var r ConsentLogRow
	var memsJSON, rawJSON sql.NullString
	row := s.db.QueryRowContext(ctx, `SELECT id, decision, signature, memories_returned,
		recorded_at, raw_response FROM consent_log ORDER BY recorded_at DESC LIMIT 1`)
	err := row.Scan(&r.ID, &r.Decision, &r.Signature, &memsJSON, &r.RecordedAt, &rawJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestConsentDecision: %w", err)
	}
	if memsJSON.Valid && memsJSON.String != "" {
		json.Unmarshal([]byte(memsJSON.String), &r.MemoriesReturned)
	}
	if rawJSON.Valid && rawJSON.String != "" {
		json.Unmarshal([]byte(rawJSON.String), &r.RawResponse)
	}
	return &r, nil
}
