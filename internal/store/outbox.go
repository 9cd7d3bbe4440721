package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertOutboxMessage enqueues a new append-only outbox row inside tx, so
// callers can append it atomically alongside the heartbeat_log row that
// produced it.
func InsertOutboxMessage(ctx context.Context, tx *sql.Tx, msg *OutboxMessage) error {
	payloadJSON, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("InsertOutboxMessage: marshal payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO outbox_messages
		(id, kind, payload, status, attempts, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
		msg.ID, msg.Kind, string(payloadJSON), msg.Status, msg.Attempts, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("InsertOutboxMessage: %w", err)
	}
	return nil
}

func scanOutboxMessage(row interface{ Scan(...any) error }) (*OutboxMessage, error) {
	var m OutboxMessage
	var payloadJSON string
	if err := row.Scan(&m.ID, &m.Kind, &payloadJSON, &m.Status, &m.Attempts, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payloadJSON), &m.Payload); err != nil {
		return nil, fmt.Errorf("scanOutboxMessage: unmarshal payload: %w", err)
	}
	return &m, nil
}

const outboxCols = `id, kind, payload, status, attempts, created_at, updated_at`

// ListPendingOutbox returns every undelivered message, oldest first, for the
// at-least-once delivery loop.
func (s *Store) ListPendingOutbox(ctx context.Context) ([]*OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+outboxCols+` FROM outbox_messages
		WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("ListPendingOutbox: %w", err)
	}
	defer rows.Close()
	var out []*OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPendingOutbox: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkOutboxDelivered records successful delivery.
func (s *Store) MarkOutboxDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox_messages SET status = 'delivered',
		updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("MarkOutboxDelivered: %w", err)
	}
	return nil
}

// MarkOutboxAttempt bumps the attempt counter and, once the caller decides
// the retry budget is exhausted, transitions the row to failed.
func (s *Store) MarkOutboxAttempt(ctx context.Context, id string, failed bool) error {
	status := "pending"
	if failed {
		status = "failed"
	}
	_, err := s.db.ExecContext(ctx, `UPDATE outbox_messages SET attempts = attempts + 1,
		status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("MarkOutboxAttempt: %w", err)
	}
	return nil
}
