package loader

import (
	"bytes"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"docchat/internal/domain"
)

// minRunLength is the shortest printable run kept from binary content.
const minRunLength = 4

// GenericLoader is the fallback for unknown extensions. Valid UTF-8 content is
// used as is; anything else is reduced to its printable runs.
type GenericLoader struct{}

func NewGenericLoader() *GenericLoader {
	return &GenericLoader{}
}

func (l *GenericLoader) Kind() domain.DocumentKind {
	return domain.KindGeneric
}

func (l *GenericLoader) Load(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var text string
	if utf8.Valid(data) && bytes.IndexByte(data, 0) < 0 {
		text = string(bytes.TrimPrefix(data, utf8BOM))
	} else {
		text = printableRuns(data, minRunLength)
	}

	return []domain.Document{{
		Source: path,
		Kind:   domain.KindGeneric,
		Text:   text,
	}}, nil
}

// printableRuns keeps runs of at least min printable characters, one per line.
func printableRuns(data []byte, min int) string {
	var (
		out  []string
		run  strings.Builder
		size int
	)
	flush := func() {
		if size >= min {
			if s := strings.TrimSpace(run.String()); s != "" {
				out = append(out, s)
			}
		}
		run.Reset()
		size = 0
	}

	for len(data) > 0 {
		r, n := utf8.DecodeRune(data)
		data = data[n:]
		if r != utf8.RuneError && (unicode.IsPrint(r) || r == '\t') {
			run.WriteRune(r)
			size++
			continue
		}
		flush()
	}
	flush()

	return strings.Join(out, "\n")
}
