package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// GetHeartbeatState reads the singleton heartbeat_state row.
func (s *Store) GetHeartbeatState(ctx context.Context) (*HeartbeatState, error) {
	return s.getHeartbeatState(ctx, s.db)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getHeartbeatState(ctx context.Context, q querier) (*HeartbeatState, error) {
	var hs HeartbeatState
	var paused int
	var initData sql.NullString
	var startedAt, completedAt sql.NullTime
	row := q.QueryRowContext(ctx, `SELECT current_energy, heartbeat_count, is_paused, init_stage,
		init_data, init_started_at, init_completed_at FROM heartbeat_state WHERE id = 1`)
	if err := row.Scan(&hs.CurrentEnergy, &hs.HeartbeatCount, &paused, &hs.InitStage,
		&initData, &startedAt, &completedAt); err != nil {
		return nil, fmt.Errorf("GetHeartbeatState: %w", err)
	}
	hs.IsPaused = paused != 0
	if initData.Valid && initData.String != "" {
		if err := json.Unmarshal([]byte(initData.String), &hs.InitData); err != nil {
			return nil, fmt.Errorf("GetHeartbeatState: unmarshal init_data: %w", err)
		}
	}
	if hs.InitData == nil {
		hs.InitData = map[string]any{}
	}
	if startedAt.Valid {
		hs.InitStartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		hs.InitCompletedAt = &completedAt.Time
	}
	return &hs, nil
}

// WithHeartbeatLock runs fn while holding the process-wide singleton lock
// over heartbeat_state, the row-level-lock-equivalent §5 requires so that
// start_heartbeat is single-flight per agent.
func (s *Store) WithHeartbeatLock(ctx context.Context, fn func(tx *sql.Tx, hs *HeartbeatState) error) error {
	s.singletonMu.Lock()
	defer s.singletonMu.Unlock()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		hs, err := s.getHeartbeatState(ctx, tx)
		if err != nil {
			return err
		}
		return fn(tx, hs)
	})
}

// SaveHeartbeatState writes back the singleton row inside tx.
func SaveHeartbeatState(ctx context.Context, tx *sql.Tx, hs *HeartbeatState) error {
	initData, err := json.Marshal(hs.InitData)
	if err != nil {
		return fmt.Errorf("SaveHeartbeatState: marshal init_data: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE heartbeat_state SET
		current_energy = ?, heartbeat_count = ?, is_paused = ?, init_stage = ?,
		init_data = ?, init_started_at = ?, init_completed_at = ? WHERE id = 1`,
		hs.CurrentEnergy, hs.HeartbeatCount, boolToInt(hs.IsPaused), hs.InitStage,
		string(initData), hs.InitStartedAt, hs.InitCompletedAt)
	if err != nil {
		return fmt.Errorf("SaveHeartbeatState: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// InsertHeartbeatLog starts a new heartbeat_log row inside tx; ended_at is
// left null (this row identifies an in-flight heartbeat per §5).
func InsertHeartbeatLog(ctx context.Context, tx *sql.Tx, row *HeartbeatLogRow) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO heartbeat_log
		(id, started_at, energy_before, energy_after) VALUES (?,?,?,?)`,
		row.ID, row.StartedAt, row.EnergyBefore, row.EnergyBefore)
	if err != nil {
		return fmt.Errorf("InsertHeartbeatLog: %w", err)
	}
	return nil
}

// FinalizeHeartbeatLog writes the terminal fields of a heartbeat_log row.
// Every row with ended_at set must carry a non-null memory_id (§8).
func FinalizeHeartbeatLog(ctx context.Context, tx *sql.Tx, row *HeartbeatLogRow) error {
	if row.EndedAt != nil && (row.MemoryID == nil || *row.MemoryID == "") {
		return substrateerr.StateViolation("FinalizeHeartbeatLog",
			fmt.Errorf("heartbeat %s finalized without a memory_id", row.ID))
	}
	decisionJSON, err := json.Marshal(row.Decision)
	if err != nil {
		return fmt.Errorf("FinalizeHeartbeatLog: marshal decision: %w", err)
	}
	actionsJSON, err := json.Marshal(row.ActionsTaken)
	if err != nil {
		return fmt.Errorf("FinalizeHeartbeatLog: marshal actions: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE heartbeat_log SET
		ended_at = ?, decision = ?, actions_taken = ?, memory_id = ?,
		energy_after = ?, reason_if_skipped = ? WHERE id = ?`,
		row.EndedAt, string(decisionJSON), string(actionsJSON), row.MemoryID,
		row.EnergyAfter, row.ReasonIfSkipped, row.ID)
	if err != nil {
		return fmt.Errorf("FinalizeHeartbeatLog: %w", err)
	}
	return nil
}

// GetHeartbeatLog retrieves a heartbeat_log row by id.
func (s *Store) GetHeartbeatLog(ctx context.Context, id string) (*HeartbeatLogRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, ended_at, decision, actions_taken,
		memory_id, energy_before, energy_after, reason_if_skipped FROM heartbeat_log WHERE id = ?`, id)
	return scanHeartbeatLog(row)
}

func scanHeartbeatLog(row interface{ Scan(...any) error }) (*HeartbeatLogRow, error) {
	var r HeartbeatLogRow
	var endedAt sql.NullTime
	var decision, actions sql.NullString
	var memoryID sql.NullString
	if err := row.Scan(&r.ID, &r.StartedAt, &endedAt, &decision, &actions, &memoryID,
		&r.EnergyBefore, &r.EnergyAfter, &r.ReasonIfSkipped); err != nil {
		return nil, fmt.Errorf("scanHeartbeatLog: %w", err)
	}
	if endedAt.Valid {
		r.EndedAt = &endedAt.Time
	}
	if memoryID.Valid {
		r.MemoryID = &memoryID.String
	}
	if decision.Valid && decision.String != "" {
		json.Unmarshal([]byte(decision.String), &r.Decision)
	}
	if actions.Valid && actions.String != "" {
		json.Unmarshal([]byte(actions.String), &r.ActionsTaken)
	}
	return &r, nil
}

// LastFinalizedHeartbeat returns the most recent heartbeat_log row with a
// non-null ended_at, or nil if none exists yet.
func (s *Store) LastFinalizedHeartbeat(ctx context.Context) (*HeartbeatLogRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, ended_at, decision, actions_taken,
		memory_id, energy_before, energy_after, reason_if_skipped FROM heartbeat_log
		WHERE ended_at IS NOT NULL ORDER BY ended_at DESC LIMIT 1`)
	r, err := scanHeartbeatLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UnfinalizedHeartbeats returns every heartbeat_log row with a null
// ended_at, used by crash recovery.
func (s *Store) UnfinalizedHeartbeats(ctx context.Context) ([]*HeartbeatLogRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, ended_at, decision, actions_taken,
		memory_id, energy_before, energy_after, reason_if_skipped FROM heartbeat_log
		WHERE ended_at IS NULL ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("UnfinalizedHeartbeats: %w", err)
	}
	defer rows.Close()
	var out []*HeartbeatLogRow
	for rows.Next() {
		r, err := scanHeartbeatLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AbortHeartbeat marks an unrecoverable in-flight heartbeat as finalized
// with a crash-recovery memory id and reason, used when no pending external
// call exists for it across a restart.
func AbortHeartbeat(ctx context.Context, tx *sql.Tx, id, crashMemoryID string) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `UPDATE heartbeat_log SET ended_at = ?, memory_id = ?,
		reason_if_skipped = 'crash_recovery' WHERE id = ?`, now, crashMemoryID, id)
	if err != nil {
		return fmt.Errorf("AbortHeartbeat: %w", err)
	}
	return nil
}
