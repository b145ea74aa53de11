// Package storage provides the SQLite chunk/metadata artifact used by index persistence.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensaku/internal/models"
)

// ChunkStore persists the raw chunk/metadata list of an index generation.
// Embeddings live in the vector artifact, not here.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewChunkStore(dbPath string) (*ChunkStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &ChunkStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		kind TEXT NOT NULL,
		coherence_score REAL NOT NULL,
		quality_score REAL NOT NULL,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// PutChunks inserts or replaces chunks in one transaction.
func (s *ChunkStore) PutChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks
		 (id, document_id, text, start_offset, end_offset, kind, coherence_score, quality_score, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal metadata for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Text, c.StartOffset, c.EndOffset,
			string(c.Kind), c.CoherenceScore, c.QualityScore, string(metadataJSON),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to store chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// AllChunks returns every stored chunk, ordered by id.
func (s *ChunkStore) AllChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, text, start_offset, end_offset, kind, coherence_score, quality_score, metadata
		 FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var kind, metadataJSON string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &c.StartOffset, &c.EndOffset,
			&kind, &c.CoherenceScore, &c.QualityScore, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Kind = models.ChunkKind(kind)
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", c.ID, err)
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}
