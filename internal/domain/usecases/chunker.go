package usecases

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// defaultSeparators are tried in order: paragraph, line, word, then a hard cut.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits document text into overlapping segments of at most
// size runes. It prefers paragraph, line and word boundaries and only
// cuts inside a word when nothing else fits. Output is deterministic.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// NewChunker validates the configuration and returns a Chunker.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", entities.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", entities.ErrInvalidInput, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap between consecutive chunks in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// SplitDocuments chunks every document in order. Source and page are
// copied onto each chunk; ids are left for the fingerprint pass.
func (c *Chunker) SplitDocuments(docs []entities.Document) []entities.Chunk {
	var chunks []entities.Chunk
	for _, doc := range docs {
		for _, text := range c.SplitText(doc.Content) {
			chunks = append(chunks, entities.Chunk{
				Source:  doc.Source,
				Page:    doc.Page,
				Content: text,
			})
		}
	}
	return chunks
}

// SplitText splits a single text. Empty or whitespace-only input yields nil.
func (c *Chunker) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	// Pick the first separator present in the text; "" always matches.
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < c.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				final = append(final, t)
			}
		} else {
			final = append(final, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs small pieces into chunks of at most size runes, carrying
// up to overlap runes of trailing pieces into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	flush := func() {
		if t := strings.TrimSpace(strings.Join(current, "")); t != "" {
			out = append(out, t)
		}
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.size && len(current) > 0 {
			flush()
			for total > c.overlap || (total+n > c.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		flush()
	}
	return out
}

// splitKeepSeparator splits text on sep, attaching each separator to the
// start of the piece that follows it. Empty pieces are dropped.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, p := range parts[1:] {
		pieces = append(pieces, sep+p)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
