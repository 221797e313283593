// Package store provides the default on-disk vector store. Chunks and their
// embeddings live in a single SQLite database inside a store directory; the
// directory is the unit of reset and is removed wholesale when a new session
// starts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/rag"
)

// DBFileName is the database file created inside the store directory.
const DBFileName = "vectors.db"

// SQLiteStore is a rag.VectorStore backed by a SQLite database in Dir.
// Similarity is computed in process, which is adequate for the chunk counts of
// a single uploaded document.
type SQLiteStore struct {
	// dir is the store directory that holds DBFileName.
	dir string

	// mu guards db against Reset swapping it underneath a reader.
	mu sync.RWMutex

	// db is the underlying database connection pool. Nil after Close.
	db *sql.DB

	// removeDir deletes the store directory during Reset. Defaults to RemoveDir.
	removeDir func(string) error
}

// Open opens (or creates) a SQLiteStore in dir and runs the schema migration.
// The directory is created if it does not exist.
func Open(dir string) (*SQLiteStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: directory must not be empty")
	}
	s := &SQLiteStore{dir: dir, removeDir: RemoveDir}
	db, err := openDB(dir)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

// Dir returns the store directory.
func (s *SQLiteStore) Dir() string { return s.dir }

// openDB creates dir if needed and opens a migrated database inside it.
func openDB(dir string) (*sql.DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w: create %s: %v", apperr.ErrStoreUnavailable, dir, err)
	}

	path := filepath.Join(dir, DBFileName)
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: %w: open %s: %v", apperr.ErrStoreUnavailable, path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrate creates the schema if it does not already exist.
func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    id           TEXT    PRIMARY KEY,
    document_id  TEXT    NOT NULL,
    chunk_index  INTEGER NOT NULL,
    char_offset  INTEGER NOT NULL,
    content      TEXT    NOT NULL,
    source       TEXT    NOT NULL,
    embedding    BLOB    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document
    ON chunks (document_id, chunk_index);
`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("store: %w: migrate: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// handle returns the open database or ErrStoreUnavailable after Close.
// Callers must hold s.mu.
func (s *SQLiteStore) handle() (*sql.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store: %w: store is closed", apperr.ErrStoreUnavailable)
	}
	return s.db, nil
}

// Add inserts chunks with their embeddings in a single transaction. A chunk
// whose ID already exists fails the whole batch.
func (s *SQLiteStore) Add(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("store: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: %w: begin: %v", apperr.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO chunks (id, document_id, chunk_index, char_offset, content, source, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: %w: prepare: %v", apperr.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Offset, c.Content, c.Source,
			encodeVector(embeddings[i]), now); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("store: %w: %s", rag.ErrDuplicateChunk, c.ID)
			}
			return fmt.Errorf("store: insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: %w: commit: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// Search scores every stored chunk against vector by cosine similarity and
// returns the k best, highest first. Ties keep insertion order.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]rag.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	const q = `SELECT id, document_id, chunk_index, char_offset, content, source, embedding
FROM chunks ORDER BY rowid`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: %w: search: %v", apperr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var scored []rag.Chunk
	for rows.Next() {
		var c rag.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Offset, &c.Content, &c.Source, &blob); err != nil {
			return nil, fmt.Errorf("store: %w: search scan: %v", apperr.ErrStoreUnavailable, err)
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("store: chunk %s: %w", c.ID, err)
		}
		c.Score = cosine(vector, emb)
		scored = append(scored, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w: search rows: %v", apperr.ErrStoreUnavailable, err)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: %w: count: %v", apperr.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Reset closes the database, removes the store directory and reopens an
// empty collection in a freshly created directory. If the directory cannot
// be removed the error is returned, but the store is still reopened so it
// stays usable.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: reset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("store: %w: close before reset: %v", apperr.ErrStoreUnavailable, err)
		}
		s.db = nil
	}

	removeErr := s.removeDir(s.dir)

	db, err := openDB(s.dir)
	if err != nil {
		return errors.Join(removeErr, err)
	}
	s.db = db

	if removeErr != nil {
		// The old directory survived; clear whatever the database still holds.
		if _, err := db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
			return errors.Join(removeErr, fmt.Errorf("store: %w: clear: %v", apperr.ErrStoreUnavailable, err))
		}
		return removeErr
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ rag.VectorStore = (*SQLiteStore)(nil)
