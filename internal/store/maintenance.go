package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetMaintenanceState reads the singleton maintenance_state row.
func (s *Store) GetMaintenanceState(ctx context.Context) (*MaintenanceState, error) {
	var ms MaintenanceState
	var paused int
	row := s.db.QueryRowContext(ctx, `SELECT is_paused, last_subconscious_heartbeat,
		last_subconscious_run_at FROM maintenance_state WHERE id = 1`)
	if err := row.Scan(&paused, &ms.LastSubconsciousHeartbeat, &ms.LastSubconsciousRunAt); err != nil {
		return nil, fmt.Errorf("GetMaintenanceState: %w", err)
	}
	ms.IsPaused = paused != 0
	return &ms, nil
}

// WithMaintenanceLock serializes a subconscious maintenance pass the same
// way WithHeartbeatLock serializes start_heartbeat, since both share the
// process-wide singleton-row discipline of §5.
func (s *Store) WithMaintenanceLock(ctx context.Context, fn func(tx *sql.Tx, ms *MaintenanceState) error) error {
	s.singletonMu.Lock()
	defer s.singletonMu.Unlock()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var ms MaintenanceState
		var paused int
		row := tx.QueryRowContext(ctx, `SELECT is_paused, last_subconscious_heartbeat,
			last_subconscious_run_at FROM maintenance_state WHERE id = 1`)
		if err := row.Scan(&paused, &ms.LastSubconsciousHeartbeat, &ms.LastSubconsciousRunAt); err != nil {
			return fmt.Errorf("WithMaintenanceLock: %w", err)
		}
		ms.IsPaused = paused != 0
		return fn(tx, &ms)
	})
}

// SaveMaintenanceState writes back the singleton row inside tx.
func SaveMaintenanceState(ctx context.Context, tx *sql.Tx, ms *MaintenanceState) error {
	_, err := tx.ExecContext(ctx, `UPDATE maintenance_state SET
		is_paused = ?, last_subconscious_heartbeat = ?, last_subconscious_run_at = ? WHERE id = 1`,
		boolToInt(ms.IsPaused), ms.LastSubconsciousHeartbeat, ms.LastSubconsciousRunAt)
	if err != nil {
		return fmt.Errorf("SaveMaintenanceState: %w", err)
	}
	return nil
}

// GetEmotionalState reads the singleton emotional_state row.
func (s *Store) GetEmotionalState(ctx context.Context) (*EmotionalState, error) {
	var es EmotionalState
	row := s.db.QueryRowContext(ctx, `SELECT valence, arousal, dominance, intensity,
		mood_valence, mood_arousal, primary_emotion FROM emotional_state WHERE id = 1`)
	if err := row.Scan(&es.Valence, &es.Arousal, &es.Dominance, &es.Intensity,
		&es.MoodValence, &es.MoodArousal, &es.PrimaryEmotion); err != nil {
		return nil, fmt.Errorf("GetEmotionalState: %w", err)
	}
	return &es, nil
}

// SaveEmotionalState writes back the singleton emotional_state row.
func (s *Store) SaveEmotionalState(ctx context.Context, es *EmotionalState) error {
	_, err := s.db.ExecContext(ctx, `UPDATE emotional_state SET
		valence = ?, arousal = ?, dominance = ?, intensity = ?,
		mood_valence = ?, mood_arousal = ?, primary_emotion = ? WHERE id = 1`,
		es.Valence, es.Arousal, es.Dominance, es.Intensity,
		es.MoodValence, es.MoodArousal, es.PrimaryEmotion)
	if err != nil {
		return fmt.Errorf("SaveEmotionalState: %w", err)
	}
	return nil
}

// SaveEmotionalStateTx is SaveEmotionalState scoped to a caller transaction,
// used when a maintenance pass blends mood alongside other singleton writes.
func SaveEmotionalStateTx(ctx context.Context, tx *sql.Tx, es *EmotionalState) error {
	_, err := tx.ExecContext(ctx, `UPDATE emotional_state SET
		valence = ?, arousal = ?, dominance = ?, intensity = ?,
		mood_valence = ?, mood_arousal = ?, primary_emotion = ? WHERE id = 1`,
		es.Valence, es.Arousal, es.Dominance, es.Intensity,
		es.MoodValence, es.MoodArousal, es.PrimaryEmotion)
	if err != nil {
		return fmt.Errorf("SaveEmotionalStateTx: %w", err)
	}
	return nil
}
