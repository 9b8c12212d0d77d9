// Package sqlite keeps rows in a local SQLite file and searches them by
// brute-force cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"byd-rag/rag"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	dimension INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_dimension ON documents(dimension);
`

// Store implements rag.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates a database at the given path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// concurrent ingest workers share one writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, row rag.Row) error {
	if len(row.Embedding) == 0 {
		return fmt.Errorf("cannot insert empty vector")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (content, embedding, dimension) VALUES (?, ?, ?)`,
		row.Content, encodeEmbedding(row.Embedding), len(row.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// Search scans every row of the query's dimensionality.
func (s *Store) Search(ctx context.Context, embedding []float32, params rag.SearchParams) ([]rag.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedding FROM documents WHERE dimension = ?`, len(embedding))
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var matches []rag.Match
	for rows.Next() {
		var (
			id      int64
			content string
			blob    []byte
		)
		if err := rows.Scan(&id, &content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", id, err)
		}
		score := rag.Cosine(embedding, vec)
		if score <= params.Threshold {
			continue
		}
		matches = append(matches, rag.Match{ID: fmt.Sprint(id), Content: content, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rag.TopMatches(matches, params.Limit), nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// little-endian IEEE 754 float32s, no length prefix
func encodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
