package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.Corpus = (*DirCorpus)(nil)

// DefaultPattern matches the PDF corpus.
const DefaultPattern = "*.pdf"

// DirCorpus is a flat directory of source files filtered by glob patterns.
type DirCorpus struct {
	dir      string
	patterns []string
}

// NewDirCorpus creates a corpus over dir. Without patterns, DefaultPattern is used.
func NewDirCorpus(dir string, patterns ...string) (*DirCorpus, error) {
	var clean []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad corpus pattern %q: %w", p, err)
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		clean = []string{DefaultPattern}
	}
	return &DirCorpus{dir: dir, patterns: clean}, nil
}

// Dir returns the corpus directory.
func (c *DirCorpus) Dir() string {
	return c.dir
}

// Scan returns matching regular files in lexical order. A missing directory
// yields no files.
func (c *DirCorpus) Scan(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !c.matchName(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(c.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Matches reports whether path is a corpus file by location and name.
func (c *DirCorpus) Matches(path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(c.dir) {
		return false
	}
	return c.matchName(filepath.Base(path))
}

func (c *DirCorpus) matchName(name string) bool {
	for _, p := range c.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
