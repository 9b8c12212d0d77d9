// Package source loads documents from a local directory.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"byd-rag/rag"

	"github.com/ledongthuc/pdf"
)

// resolve maps a document id to a path inside dir.
func resolve(dir, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("document id is empty")
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document id %q escapes the document directory", id)
	}
	return filepath.Join(dir, clean), nil
}

// PDFSource reads PDF files and extracts plain text per page.
type PDFSource struct {
	Dir string
}

func (s *PDFSource) Load(ctx context.Context, id string) ([]rag.Page, error) {
	path, err := resolve(s.Dir, id)
	if err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", id, err)
	}
	defer f.Close()

	var pages []rag.Page
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		pages = append(pages, rag.Page{Number: i, Text: text})
	}
	return pages, nil
}

// TextSource reads plain-text files as a single page.
type TextSource struct {
	Dir string
}

func (s *TextSource) Load(_ context.Context, id string) ([]rag.Page, error) {
	path, err := resolve(s.Dir, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return []rag.Page{{Number: 1, Text: string(data)}}, nil
}

// Router picks a source by file extension; .pdf goes to the PDF reader and
// everything else is read as text.
type Router struct {
	PDF  rag.DocumentSource
	Text rag.DocumentSource
}

// NewRouter serves documents from dir.
func NewRouter(dir string) *Router {
	return &Router{
		PDF:  &PDFSource{Dir: dir},
		Text: &TextSource{Dir: dir},
	}
}

func (r *Router) Load(ctx context.Context, id string) ([]rag.Page, error) {
	if strings.EqualFold(filepath.Ext(id), ".pdf") {
		return r.PDF.Load(ctx, id)
	}
	return r.Text.Load(ctx, id)
}
