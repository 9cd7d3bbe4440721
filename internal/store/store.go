package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schema creates every table of §3 DATA MODEL. Column vector type has fixed
// dimension D; embeddings are persisted as JSON float arrays and validated
// against Store.dim at write time, since SQLite has no native vector column.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding TEXT,
	importance REAL NOT NULL DEFAULT 0,
	decay_rate REAL NOT NULL DEFAULT 0,
	access_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	last_accessed TIMESTAMP NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	trust_level REAL NOT NULL DEFAULT 0,
	source_attribution TEXT,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_memories_kind_status ON memories(kind, status);
CREATE INDEX IF NOT EXISTS idx_memories_last_accessed ON memories(last_accessed);

CREATE TABLE IF NOT EXISTS working_memory (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	embedding TEXT,
	expiry TIMESTAMP NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS clusters (
	id TEXT PRIMARY KEY,
	cluster_type TEXT NOT NULL,
	name TEXT NOT NULL,
	centroid TEXT
);

CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	summary TEXT,
	summary_embedding TEXT
);

CREATE TABLE IF NOT EXISTS heartbeat_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current_energy REAL NOT NULL,
	heartbeat_count INTEGER NOT NULL DEFAULT 0,
	is_paused INTEGER NOT NULL DEFAULT 0,
	init_stage TEXT NOT NULL DEFAULT 'not_started',
	init_data TEXT,
	init_started_at TIMESTAMP,
	init_completed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS maintenance_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	is_paused INTEGER NOT NULL DEFAULT 0,
	last_subconscious_heartbeat INTEGER NOT NULL DEFAULT 0,
	last_subconscious_run_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emotional_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	valence REAL NOT NULL DEFAULT 0,
	arousal REAL NOT NULL DEFAULT 0,
	dominance REAL NOT NULL DEFAULT 0,
	intensity REAL NOT NULL DEFAULT 0,
	mood_valence REAL NOT NULL DEFAULT 0,
	mood_arousal REAL NOT NULL DEFAULT 0,
	primary_emotion TEXT NOT NULL DEFAULT 'neutral'
);

CREATE TABLE IF NOT EXISTS heartbeat_log (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	decision TEXT,
	actions_taken TEXT,
	memory_id TEXT,
	energy_before REAL NOT NULL,
	energy_after REAL NOT NULL,
	reason_if_skipped TEXT
);
CREATE INDEX IF NOT EXISTS idx_heartbeat_log_ended ON heartbeat_log(ended_at);

CREATE TABLE IF NOT EXISTS external_calls (
	id TEXT PRIMARY KEY,
	call_type TEXT NOT NULL,
	input TEXT NOT NULL,
	parent_heartbeat_id TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	output TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_external_calls_status ON external_calls(status);

CREATE TABLE IF NOT EXISTS outbox_messages (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);

CREATE TABLE IF NOT EXISTS consent_log (
	id TEXT PRIMARY KEY,
	decision TEXT NOT NULL,
	signature TEXT,
	memories_returned TEXT,
	recorded_at TIMESTAMP NOT NULL,
	raw_response TEXT
);

CREATE TABLE IF NOT EXISTS ingestion_receipts (
	source_file TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	memory_id TEXT NOT NULL,
	inserted_at TIMESTAMP NOT NULL,
	PRIMARY KEY (source_file, chunk_index, content_hash)
);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_activation (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	estimated_matches INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
`

// Store is the relational persisted store. It holds one *sql.DB (SQLite,
// single-writer) and the process-wide embedding dimension D. singletonMu
// serializes the row-level-lock semantics of §5 for the heartbeat_state and
// maintenance_state singleton rows: start_heartbeat and a maintenance pass
// must be single-flight per agent.
type Store struct {
	db  *sql.DB
	dim int

	singletonMu sync.Mutex
}

// Open opens (or creates) the SQLite database at path and applies the
// schema. dim is the process-wide embedding dimension D.
func Open(path string, dim int) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer discipline

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	s := &Store{db: db, dim: dim}
	if err := s.ensureSingletons(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Dim returns the process-wide embedding dimension.
func (s *Store) Dim() int { return s.dim }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a single transaction; §5 requires every multi-row
// mutation to be all-or-nothing.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ensureSingletons(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO heartbeat_state
		(id, current_energy, heartbeat_count, is_paused, init_stage, init_data)
		VALUES (1, 0, 0, 0, 'not_started', '{}')`)
	if err != nil {
		return fmt.Errorf("store: seed heartbeat_state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO maintenance_state
		(id, is_paused, last_subconscious_heartbeat, last_subconscious_run_at)
		VALUES (1, 0, 0, ?)`, now)
	if err != nil {
		return fmt.Errorf("store: seed maintenance_state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO emotional_state
		(id, valence, arousal, dominance, intensity, mood_valence, mood_arousal, primary_emotion)
		VALUES (1, 0, 0.3, 0.5, 0.3, 0, 0.3, 'neutral')`)
	if err != nil {
		return fmt.Errorf("store: seed emotional_state: %w", err)
	}
	return nil
}
