// Package loader reads corpus files into per-page documents.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/archiverag/internal/adapters/parser"
	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var (
	_ ports.DocumentLoader = (*TextLoader)(nil)
	_ ports.DocumentLoader = (*PDFLoader)(nil)
	_ ports.DocumentLoader = (*MultiLoader)(nil)
)

// TextLoader loads plain text documents (.txt, .md) as a single page 0.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return []entities.Document{{
		Source:  path,
		Page:    0,
		Content: string(content),
	}}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// PDFLoader loads PDF documents, one Document per page.
type PDFLoader struct {
	parser *parser.PDFParser
}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader(p *parser.PDFParser) *PDFLoader {
	if p == nil {
		p = parser.NewPDFParser(nil)
	}
	return &PDFLoader{parser: p}
}

// Load extracts every page of the PDF at path. Page numbers are 0-based.
func (l *PDFLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	pages, err := l.parser.ParsePages(ctx, path)
	if err != nil {
		return nil, err
	}

	docs := make([]entities.Document, len(pages))
	for i, text := range pages {
		docs[i] = entities.Document{
			Source:  path,
			Page:    i,
			Content: text,
		}
	}
	return docs, nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// MultiLoader dispatches to a loader by file extension.
type MultiLoader struct {
	loaders map[string]ports.DocumentLoader
	log     *slog.Logger
}

// NewMultiLoader creates a loader that handles PDF and plain text files.
func NewMultiLoader(log *slog.Logger) *MultiLoader {
	if log == nil {
		log = slog.Default()
	}
	m := &MultiLoader{
		loaders: make(map[string]ports.DocumentLoader),
		log:     log.With("component", "loader"),
	}
	m.Register(NewTextLoader())
	m.Register(NewPDFLoader(parser.NewPDFParser(log)))
	return m
}

// Register adds l for each of its extensions, replacing earlier entries.
func (m *MultiLoader) Register(l ports.DocumentLoader) {
	for _, ext := range l.SupportedExtensions() {
		m.loaders[strings.ToLower(ext)] = l
	}
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for %q files (%s)", entities.ErrInvalidInput, ext, path)
	}
	docs, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	m.log.Debug("loaded file", "path", path, "pages", len(docs))
	return docs, nil
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
