package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePDF writes a minimal PDF with one page per entry of texts.
func writePDF(t *testing.T, texts ...string) string {
	t.Helper()

	n := len(texts)
	// Objects: 1 catalog, 2 pages, 3 font, then (page, content) pairs.
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	kids := ""
	for i, text := range texts {
		pageNum := 4 + 2*i
		kids += fmt.Sprintf("%d 0 R ", pageNum)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageNum+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestPDFParser_ParsePages(t *testing.T) {
	path := writePDF(t, "Hello archive", "Second page")

	pages, err := NewPDFParser(nil).ParsePages(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Hello")
	assert.Contains(t, pages[1], "Second")
	assert.NotContains(t, pages[0], "Second")
}

func TestPDFParser_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some text, not a pdf"), 0644))

	_, err := NewPDFParser(nil).ParsePages(context.Background(), path)
	assert.Error(t, err)
}

func TestPDFParser_MissingFile(t *testing.T) {
	_, err := NewPDFParser(nil).ParsePages(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestPDFParser_CancelledContext(t *testing.T) {
	path := writePDF(t, "page")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFParser(nil).ParsePages(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
