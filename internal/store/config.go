package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetConfig reads a single namespaced config key and unmarshals its JSON
// value into out. Returns sql.ErrNoRows if the key is unset.
func (s *Store) GetConfig(ctx context.Context, key string, out any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("GetConfig(%s): %w", key, err)
	}
	return nil
}

// GetConfigDefault is GetConfig with a fallback when the key is unset.
func GetConfigDefault[T any](ctx context.Context, s *Store, key string, def T) T {
	var v T
	if err := s.GetConfig(ctx, key, &v); err != nil {
		return def
	}
	return v
}

// SetConfig writes a single namespaced config key transactionally.
func (s *Store) SetConfig(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetConfig(%s): %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("SetConfig(%s): %w", key, err)
	}
	return nil
}

// SetConfigTx is SetConfig scoped to an existing transaction, used when
// config must change atomically with other rows (e.g. agent.consent_status
// alongside a consent_log insert).
func SetConfigTx(ctx context.Context, tx *sql.Tx, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetConfigTx(%s): %w", key, err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("SetConfigTx(%s): %w", key, err)
	}
	return nil
}

// AllConfig returns every key currently set, namespace filtered by prefix
// (empty prefix returns everything). Reads are cached by callers for at
// most the duration of one heartbeat, never inside Store itself.
func (s *Store) AllConfig(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("AllConfig: %w", err)
	}
	defer rows.Close()
	out := map[string]json.RawMessage{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("AllConfig: %w", err)
		}
		out[k] = json.RawMessage(v)
	}
	return out, rows.Err()
}
