// Package vectordb provides vector store adapters implementing ports.VectorStore.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.VectorStore = (*SQLiteStore)(nil)

// DBFile is the database file name inside the store directory.
const DBFile = "vectors.db"

// SQLiteStore implements ports.VectorStore on a single SQLite file.
// Vectors are stored as JSON blobs and searched by brute-force cosine
// similarity, which is adequate for a personal document archive.
type SQLiteStore struct {
	mu  sync.RWMutex
	db  *sql.DB
	dir string
	log *slog.Logger
}

// NewSQLiteStore opens (or creates) the store under dir.
func NewSQLiteStore(dir string, log *slog.Logger) (*SQLiteStore, error) {
	if dir == "" {
		dir = "./vector_db"
	}
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serialises writers and keeps the file consistent.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:  db,
		dir: dir,
		log: log.With("store", "sqlite"),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the chunks table. seq records insertion order and is
// left untouched when an id is overwritten.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		page INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Dir returns the store directory.
func (s *SQLiteStore) Dir() string {
	return s.dir
}

// ExistingIDs returns every stored id without reading vectors or text.
func (s *SQLiteStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Upsert stores pre-embedded chunks in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, page, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			page = excluded.page,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("%w: chunk without id", entities.ErrInvalidInput)
		}
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", entities.ErrInvalidInput, chunk.ID)
		}
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.Source,
			chunk.Page,
			chunk.Index,
			chunk.Content,
			embeddingJSON,
		)
		if err != nil {
			return fmt.Errorf("upserting chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	s.log.Debug("upserted chunks", "count", len(chunks))
	return nil
}

// Search returns up to topK chunks most similar to embedding.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if topK <= 0 {
		return []entities.QueryResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, page, chunk_index, content, embedding
		FROM chunks
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var candidates []entities.QueryResult
	for rows.Next() {
		var chunk entities.Chunk
		var embeddingJSON []byte

		err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Page, &chunk.Index, &chunk.Content, &embeddingJSON)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var stored []float32
		if err := json.Unmarshal(embeddingJSON, &stored); err != nil {
			s.log.Warn("skipping chunk with corrupted embedding", "id", chunk.ID, "error", err)
			continue
		}

		candidates = append(candidates, entities.QueryResult{
			Chunk: chunk,
			Score: cosineSimilarity(embedding, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	return topResults(candidates, topK), nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

// Clear removes all data from the store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
