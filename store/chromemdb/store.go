// Package chromemdb keeps rows in an embedded chromem-go database, persisted
// to a local directory.
package chromemdb

import (
	"context"
	"fmt"

	"byd-rag/rag"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const collectionName = "documents"

// Store implements rag.Store on a chromem collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Open loads or creates a persistent database at path. An empty path keeps
// everything in memory.
func Open(path string) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
	}

	// embeddings always come precomputed, so no embedding func
	collection, err := db.GetOrCreateCollection(collectionName, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Store{db: db, collection: collection}, nil
}

func (s *Store) Insert(ctx context.Context, row rag.Row) error {
	if len(row.Embedding) == 0 {
		return fmt.Errorf("row has no embedding")
	}
	doc := chromem.Document{
		ID:        uuid.NewString(),
		Content:   row.Content,
		Embedding: row.Embedding,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, params rag.SearchParams) ([]rag.Match, error) {
	n := params.Limit
	if count := s.collection.Count(); n <= 0 || n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]rag.Match, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) <= params.Threshold {
			continue
		}
		matches = append(matches, rag.Match{ID: r.ID, Content: r.Content, Similarity: float64(r.Similarity)})
	}
	return matches, nil
}

func (s *Store) Count() int {
	return s.collection.Count()
}
