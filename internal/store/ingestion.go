package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordIngestionReceipts inserts one receipt per row inside tx, using
// INSERT OR IGNORE against the (source_file, chunk_index, content_hash)
// primary key so a second call with the same rows inserts zero rows: the
// idempotence law record_ingestion_receipts must satisfy (§8).
func RecordIngestionReceipts(ctx context.Context, tx *sql.Tx, rows []IngestionReceipt) (inserted int, err error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO ingestion_receipts
		(source_file, chunk_index, content_hash, memory_id, inserted_at) VALUES (?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("RecordIngestionReceipts: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.SourceFile, r.ChunkIndex, r.ContentHash, r.MemoryID, r.InsertedAt)
		if err != nil {
			return inserted, fmt.Errorf("RecordIngestionReceipts: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("RecordIngestionReceipts: rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// HasIngestionReceipt reports whether a (source_file, chunk_index,
// content_hash) triple has already been ingested.
func (s *Store) HasIngestionReceipt(ctx context.Context, sourceFile string, chunkIndex int, contentHash string) (bool, error) {
	var memoryID string
	err := s.db.QueryRowContext(ctx, `SELECT memory_id FROM ingestion_receipts
		WHERE source_file = ? AND chunk_index = ? AND content_hash = ?`,
		sourceFile, chunkIndex, contentHash).Scan(&memoryID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("HasIngestionReceipt: %w", err)
	}
	return true, nil
}

// ListIngestionReceiptsForSource returns every receipt for a source file,
// ordered by chunk index.
func (s *Store) ListIngestionReceiptsForSource(ctx context.Context, sourceFile string) ([]IngestionReceipt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_file, chunk_index, content_hash, memory_id, inserted_at
		FROM ingestion_receipts WHERE source_file = ? ORDER BY chunk_index ASC`, sourceFile)
	if err != nil {
		return nil, fmt.Errorf("ListIngestionReceiptsForSource: %w", err)
	}
	defer rows.Close()
	var out []IngestionReceipt
	for rows.Next() {
		var r IngestionReceipt
		if err := rows.Scan(&r.SourceFile, &r.ChunkIndex, &r.ContentHash, &r.MemoryID, &r.InsertedAt); err != nil {
			return nil, fmt.Errorf("ListIngestionReceiptsForSource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
