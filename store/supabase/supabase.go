// Package supabase stores rows through Supabase's PostgREST API and
// searches them with the match_documents SQL function.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"byd-rag/rag"
)

// Config configures a Store.
type Config struct {
	URL      string // project url, e.g. https://xyz.supabase.co
	Key      string // anon or service key
	Table    string
	Function string
	Timeout  time.Duration
}

// Store implements rag.Store on a Supabase project.
type Store struct {
	baseURL  string
	key      string
	table    string
	function string
	client   *http.Client
}

// APIError is a PostgREST error body.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("supabase returned status %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Code != "" {
		msg += " (code " + e.Code + ")"
	}
	if e.Details != "" {
		msg += ", details: " + e.Details
	}
	if e.Hint != "" {
		msg += ", hint: " + e.Hint
	}
	return msg
}

// New creates a Supabase store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	if cfg.Table == "" {
		cfg.Table = "documents"
	}
	if cfg.Function == "" {
		cfg.Function = "match_documents"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Store{
		baseURL:  strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		key:      cfg.Key,
		table:    cfg.Table,
		function: cfg.Function,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type insertRow struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// Insert adds one row to the documents table.
func (s *Store) Insert(ctx context.Context, row rag.Row) error {
	body := []insertRow{{Content: row.Content, Embedding: row.Embedding}}
	return s.post(ctx, "/"+s.table, body, nil, "return=minimal")
}

type matchRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchThreshold float64   `json:"match_threshold"`
	MatchCount     int       `json:"match_count"`
}

type matchRow struct {
	ID         json.RawMessage `json:"id"`
	Content    string          `json:"content"`
	Similarity float64         `json:"similarity"`
}

// Search calls the match function via RPC.
func (s *Store) Search(ctx context.Context, embedding []float32, params rag.SearchParams) ([]rag.Match, error) {
	req := matchRequest{
		QueryEmbedding: embedding,
		MatchThreshold: params.Threshold,
		MatchCount:     params.Limit,
	}
	var rows []matchRow
	if err := s.post(ctx, "/rpc/"+s.function, req, &rows, ""); err != nil {
		return nil, err
	}

	matches := make([]rag.Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, rag.Match{ID: strings.Trim(string(r.ID), `"`), Content: r.Content, Similarity: r.Similarity})
	}
	return matches, nil
}

func (s *Store) post(ctx context.Context, path string, in any, out any, prefer string) error {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", s.key)
	httpReq.Header.Set("Authorization", "Bearer "+s.key)
	if prefer != "" {
		httpReq.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return &rag.Error{Kind: rag.KindStore, Op: "supabase " + path, Err: err, Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return &rag.Error{
			Kind:      rag.KindStore,
			Op:        "supabase " + path,
			Err:       apiErr,
			Transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
