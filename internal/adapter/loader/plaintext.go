package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"docchat/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const blockElements = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, section, article, pre, blockquote"

// PlainTextLoader reads text files as a single document. HTML is reduced to
// its visible text.
type PlainTextLoader struct{}

func NewPlainTextLoader() *PlainTextLoader {
	return &PlainTextLoader{}
}

func (l *PlainTextLoader) Kind() domain.DocumentKind {
	return domain.KindPlainText
}

func (l *PlainTextLoader) Load(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = htmlText(data)
		if err != nil {
			return nil, err
		}
	default:
		text = strings.ToValidUTF8(string(data), "�")
	}

	return []domain.Document{{
		Source: path,
		Kind:   domain.KindPlainText,
		Text:   text,
	}}, nil
}

// htmlText returns the visible text of an HTML page, one block per line.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	// block boundaries become line breaks before the text is flattened
	root.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	title := strings.TrimSpace(doc.Find("head title").Text())
	if title != "" {
		lines = append(lines, title)
	}
	for _, line := range strings.Split(root.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
