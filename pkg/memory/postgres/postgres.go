// Package postgres provides a PostgreSQL-backed implementation of
// memory.Store using the pgvector extension for approximate
// nearest-neighbour retrieval.
//
// The pgvector extension must be available in the target database; Migrate
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, embedder)
//	if err != nil { … }
//	defer store.Close()
//
//	item, _ := store.Add(ctx, "User's dog is called Biscuit", nil)
//	hits, _ := store.Query(ctx, "what is my dog's name?", 3)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/feralbyte/kindred/pkg/memory"
	"github.com/feralbyte/kindred/pkg/provider/embeddings"
)

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements memory.Store on a PostgreSQL memories table with a
// pgvector HNSW index. All operations are safe for concurrent use.
type Store struct {
	db       DB
	embedder embeddings.Provider
	closer   func()
}

// New creates a Store, establishes a connection pool to the database at dsn,
// registers pgvector types on every connection, and runs Migrate to ensure
// the memories table and vector extension exist.
//
// The embedder's Dimensions() is baked into the vector column type at schema
// creation time; switching embedding models afterwards requires a manual
// schema change.
func New(ctx context.Context, dsn string, embedder embeddings.Provider) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("postgres memory: embedder must not be nil")
	}
	dims := embedder.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("postgres memory: embedder reports %d dimensions", dims)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres memory: ping: %w", err)
	}
	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres memory: migrate: %w", err)
	}

	return &Store{db: pool, embedder: embedder, closer: pool.Close}, nil
}

// NewWithDB creates a Store on an existing connection or pool. The caller
// keeps ownership of db (Close on the returned Store is a no-op) and is
// responsible for running [Migrate] beforehand.
func NewWithDB(db DB, embedder embeddings.Provider) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres memory: db must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("postgres memory: embedder must not be nil")
	}
	return &Store{db: db, embedder: embedder}, nil
}

// ddlMemories returns the DDL with the embedding dimension substituted.
func ddlMemories(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id          TEXT         PRIMARY KEY,
    text        TEXT         NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_memories_created_at
    ON memories (created_at);
`, dims)
}

// Migrate creates or ensures the memories table, indexes, and the vector
// extension exist. It is idempotent and safe to call on every application
// start.
func Migrate(ctx context.Context, db DB, dims int) error {
	if _, err := db.Exec(ctx, ddlMemories(dims)); err != nil {
		return fmt.Errorf("apply memories schema: %w", err)
	}
	return nil
}

// Add implements memory.Store.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string) (memory.Item, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return memory.Item{}, fmt.Errorf("postgres memory: embed: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	item := memory.Item{
		ID:        uuid.NewString(),
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	const q = `
		INSERT INTO memories (id, text, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = s.db.Exec(ctx, q, item.ID, item.Text, item.Metadata, pgvector.NewVector(vec), item.CreatedAt)
	if err != nil {
		return memory.Item{}, fmt.Errorf("postgres memory: insert: %w", err)
	}
	return item, nil
}

// Query implements memory.Store. Results are ordered by ascending cosine
// distance (most similar first).
func (s *Store) Query(ctx context.Context, text string, topK int) ([]memory.Result, error) {
	if topK <= 0 {
		return []memory.Result{}, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: embed query: %w", err)
	}

	const q = `
		SELECT id, text, metadata, created_at,
		       embedding <=> $1 AS distance
		FROM   memories
		ORDER  BY distance
		LIMIT  $2`
	rows, err := s.db.Query(ctx, q, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres memory: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Result, error) {
		var r memory.Result
		if err := row.Scan(&r.Item.ID, &r.Item.Text, &r.Item.Metadata, &r.Item.CreatedAt, &r.Distance); err != nil {
			return memory.Result{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres memory: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.Result{}
	}
	return results, nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres memory: delete: %w", err)
	}
	return nil
}

// Count implements memory.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres memory: count: %w", err)
	}
	return n, nil
}

// Close implements memory.Store. It releases the connection pool when the
// Store owns it; for stores created with [NewWithDB] it is a no-op.
func (s *Store) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)
