package rag

import "context"

// Chunk of a document
type Chunk struct {
	ID        string
	Content   string
	Source    string // document id
	Page      int
	Embedding []float32
}

// Page is the extracted text of one document page.
type Page struct {
	Number int
	Text   string
}

// Row is what gets persisted: the cleaned chunk text and its embedding.
type Row struct {
	Content   string
	Embedding []float32
}

// Match is a stored row returned by a similarity search.
type Match struct {
	ID         string  `json:"id,omitempty"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SearchParams bounds a similarity search.
type SearchParams struct {
	Threshold float64
	Limit     int
}

// DefaultSearchParams mirrors the match_documents call of the service:
// similarity above 0.5, at most 10 rows.
var DefaultSearchParams = SearchParams{Threshold: 0.5, Limit: 10}

// Message is one chat message sent to the completion model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Answer is the result of a query.
type Answer struct {
	Text    string
	Context []Match
	Prompt  []Message
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Completer asks a chat model for a reply to the given messages.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Store persists rows and answers similarity searches.
// Search results are ordered by descending similarity.
type Store interface {
	Insert(ctx context.Context, row Row) error
	Search(ctx context.Context, embedding []float32, params SearchParams) ([]Match, error)
}

// DocumentSource loads the pages of a document by id.
type DocumentSource interface {
	Load(ctx context.Context, id string) ([]Page, error)
}

// Splitter splits text into chunks. langchaingo's RecursiveCharacter satisfies it.
type Splitter interface {
	SplitText(text string) ([]string, error)
}
