package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"docchat/internal/domain"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// TextChunker splits documents into overlapping windows of characters
// (Unicode code points). A window's cut is pulled back to the last whitespace
// in its second half so words are not split when avoidable.
type TextChunker struct {
	size    int
	overlap int
}

// NewTextChunker creates a chunker. A non-positive size uses DefaultSize; an
// overlap that would not leave the window advancing is clamped to size/4.
func NewTextChunker(size, overlap int) *TextChunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &TextChunker{size: size, overlap: overlap}
}

func (c *TextChunker) Size() int    { return c.size }
func (c *TextChunker) Overlap() int { return c.overlap }

// Chunk splits every document in order. Chunk.Index is the position in the
// returned slice.
func (c *TextChunker) Chunk(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, w := range c.windows([]rune(doc.Text)) {
			chunks = append(chunks, domain.Chunk{
				ID:     chunkID(doc.Source, doc.Page, w.offset, w.text),
				Source: doc.Source,
				Page:   doc.Page,
				Offset: w.offset,
				Index:  len(chunks),
				Text:   w.text,
			})
		}
	}
	return chunks
}

type window struct {
	offset int
	text   string
}

func (c *TextChunker) windows(runes []rune) []window {
	var out []window
	n := len(runes)
	start := 0

	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.cutAtSpace(runes, start, end)
		}

		if w, ok := trimmedWindow(runes, start, end); ok {
			out = append(out, w)
		}
		if end == n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// cutAtSpace moves end back to just after the last whitespace found in the
// second half of [start, end). Without one, end is returned unchanged.
func (c *TextChunker) cutAtSpace(runes []rune, start, end int) int {
	half := start + c.size/2
	for i := end; i > half; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func trimmedWindow(runes []rune, start, end int) (window, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return window{}, false
	}
	return window{offset: start, text: string(runes[start:end])}, true
}

func chunkID(source string, page, offset int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|", source, page, offset)
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Preview returns the first n characters of text on one line, for display.
func Preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
