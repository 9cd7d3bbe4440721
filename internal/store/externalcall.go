package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// InsertExternalCall enqueues a new "think" call. Callers set ParentHeartbeatID
// when the call suspends a heartbeat that must resume on apply.
func (s *Store) InsertExternalCall(ctx context.Context, row *ExternalCallRow) error {
	inputJSON, err := json.Marshal(row.Input)
	if err != nil {
		return fmt.Errorf("InsertExternalCall: marshal input: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO external_calls
		(id, call_type, input, parent_heartbeat_id, status, attempts, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		row.ID, row.CallType, string(inputJSON), row.ParentHeartbeatID, row.Status,
		row.Attempts, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("InsertExternalCall: %w", err)
	}
	return nil
}

func scanExternalCall(row interface{ Scan(...any) error }) (*ExternalCallRow, error) {
	var r ExternalCallRow
	var inputJSON string
	var outputJSON sql.NullString
	var parentID sql.NullString
	if err := row.Scan(&r.ID, &r.CallType, &inputJSON, &parentID, &r.Status, &r.Attempts,
		&outputJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(inputJSON), &r.Input); err != nil {
		return nil, fmt.Errorf("scanExternalCall: unmarshal input: %w", err)
	}
	if parentID.Valid {
		r.ParentHeartbeatID = &parentID.String
	}
	if outputJSON.Valid && outputJSON.String != "" {
		if err := json.Unmarshal([]byte(outputJSON.String), &r.Output); err != nil {
			return nil, fmt.Errorf("scanExternalCall: unmarshal output: %w", err)
		}
	}
	return &r, nil
}

const externalCallCols = `id, call_type, input, parent_heartbeat_id, status, attempts, output, created_at, updated_at`

// GetExternalCall retrieves an external call row by id.
func (s *Store) GetExternalCall(ctx context.Context, id string) (*ExternalCallRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+externalCallCols+` FROM external_calls WHERE id = ?`, id)
	r, err := scanExternalCall(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetExternalCall: %s: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("GetExternalCall: %w", err)
	}
	return r, nil
}

// ListPendingExternalCalls returns every call not yet applied, oldest first,
// for the dispatch loop and for crash-recovery resumption.
func (s *Store) ListPendingExternalCalls(ctx context.Context) ([]*ExternalCallRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+externalCallCols+` FROM external_calls
		WHERE status IN ('pending', 'in_flight') ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("ListPendingExternalCalls: %w", err)
	}
	defer rows.Close()
	var out []*ExternalCallRow
	for rows.Next() {
		r, err := scanExternalCall(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPendingExternalCalls: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkExternalCallInFlight transitions pending -> in_flight and bumps
// attempts. Returns substrateerr.StateViolation if the row was not pending.
func (s *Store) MarkExternalCallInFlight(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE external_calls SET status = 'in_flight',
		attempts = attempts + 1, updated_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("MarkExternalCallInFlight: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkExternalCallInFlight: %w", err)
	}
	if n == 0 {
		return substrateerr.StateViolation("MarkExternalCallInFlight",
			fmt.Errorf("call %s not pending", id))
	}
	return nil
}

// ApplyExternalCallResult records the output of a call and marks it applied.
// Idempotent: re-applying a call already in status=applied is a no-op that
// returns nil without touching output, since apply_external_call_result is
// keyed on call id (§8).
func (s *Store) ApplyExternalCallResult(ctx context.Context, id string, output map[string]any) error {
	current, err := s.GetExternalCall(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == CallApplied {
		return nil
	}
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("ApplyExternalCallResult: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE external_calls SET status = 'applied',
		output = ?, updated_at = ? WHERE id = ?`, string(outputJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("ApplyExternalCallResult: %w", err)
	}
	return nil
}

// MarkExternalCallFailed records a terminal failure for a call (retry policy
// exhausted).
func (s *Store) MarkExternalCallFailed(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE external_calls SET status = 'failed',
		output = ?, updated_at = ? WHERE id = ?`,
		fmt.Sprintf(`{"error": %q}`, reason), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("MarkExternalCallFailed: %w", err)
	}
	return nil
}
