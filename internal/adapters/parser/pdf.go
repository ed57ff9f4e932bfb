// Package parser extracts per-page text from PDF files.
package parser

import (
	"context"
	"fmt"
	"log/slog"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser extracts plain text from PDF files page by page.
type PDFParser struct {
	log *slog.Logger
}

// NewPDFParser creates a PDF parser.
func NewPDFParser(log *slog.Logger) *PDFParser {
	if log == nil {
		log = slog.Default()
	}
	return &PDFParser{log: log.With("parser", "pdf")}
}

// ParsePages returns the text of every page in page order. Index i of the
// result is page i (0-based). Pages without extractable text yield "".
func (p *PDFParser) ParsePages(ctx context.Context, path string) (pages []string, err error) {
	// The pdf library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parsing %s: malformed pdf: %v", path, r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages = make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			p.log.Debug("skipping null page", "path", path, "page", i-1)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting %s page %d: %w", path, i-1, err)
		}
		pages[i-1] = text
	}

	p.log.Debug("parsed pdf", "path", path, "pages", numPages)
	return pages, nil
}
