// Package postgres stores rows in Postgres with the pgvector extension, for
// example a Supabase database reached over its connection string.
package postgres

import (
	"context"
	"fmt"
	"strconv"

	"byd-rag/rag"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Config configures a Store.
type Config struct {
	DatabaseURL  string
	Table        string
	Function     string
	Dimensions   int
	EnsureSchema bool
}

// Store implements rag.Store on a pgx connection pool.
type Store struct {
	pool     *pgxpool.Pool
	table    string
	function string
}

// Open connects, optionally creates the schema, and registers the vector type.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = "documents"
	}
	if cfg.Function == "" {
		cfg.Function = "match_documents"
	}

	if cfg.EnsureSchema {
		if err := ensureSchema(ctx, cfg); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool:     pool,
		table:    pgx.Identifier{cfg.Table}.Sanitize(),
		function: pgx.Identifier{cfg.Function}.Sanitize(),
	}, nil
}

func ensureSchema(ctx context.Context, cfg Config) error {
	if cfg.Dimensions <= 0 {
		return fmt.Errorf("dimensions are required to create the schema")
	}
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	for _, stmt := range SchemaStatements(cfg.Table, cfg.Function, cfg.Dimensions) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements returns the DDL for the documents table and its cosine
// match function.
func SchemaStatements(table, function string, dims int) []string {
	t := pgx.Identifier{table}.Sanitize()
	f := pgx.Identifier{function}.Sanitize()
	d := strconv.Itoa(dims)
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
	id bigserial PRIMARY KEY,
	content text,
	embedding vector(` + d + `)
)`,
		`CREATE OR REPLACE FUNCTION ` + f + ` (
	query_embedding vector(` + d + `),
	match_threshold float,
	match_count int
)
RETURNS TABLE (id bigint, content text, similarity float)
LANGUAGE sql STABLE
AS $$
	SELECT d.id, d.content, 1 - (d.embedding <=> query_embedding) AS similarity
	FROM ` + t + ` d
	WHERE 1 - (d.embedding <=> query_embedding) > match_threshold
	ORDER BY d.embedding <=> query_embedding
	LIMIT match_count;
$$`,
	}
}

func (s *Store) Insert(ctx context.Context, row rag.Row) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (content, embedding) VALUES ($1, $2)`,
		row.Content, pgvector.NewVector(row.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, params rag.SearchParams) ([]rag.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, similarity FROM `+s.function+`($1, $2, $3)`,
		pgvector.NewVector(embedding), params.Threshold, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to call match function: %w", err)
	}
	defer rows.Close()

	var matches []rag.Match
	for rows.Next() {
		var (
			id int64
			m  rag.Match
		)
		if err := rows.Scan(&id, &m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.ID = strconv.FormatInt(id, 10)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.table).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
