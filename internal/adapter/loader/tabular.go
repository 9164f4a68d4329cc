package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"docchat/internal/domain"
)

// TabularLoader renders spreadsheet rows as "header: value" lines. CSV and
// TSV files become one document; workbooks become one document per sheet,
// numbered from 1.
type TabularLoader struct{}

func NewTabularLoader() *TabularLoader {
	return &TabularLoader{}
}

func (l *TabularLoader) Kind() domain.DocumentKind {
	return domain.KindTabular
}

func (l *TabularLoader) Load(path string) ([]domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return l.loadWorkbook(path)
	case ".tsv":
		return l.loadDelimited(path, '\t')
	default:
		return l.loadDelimited(path, ',')
	}
}

func (l *TabularLoader) loadDelimited(path string, comma rune) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, rec)
	}

	return []domain.Document{{
		Source: path,
		Kind:   domain.KindTabular,
		Text:   renderRows(rows),
	}}, nil
}

func (l *TabularLoader) loadWorkbook(path string) ([]domain.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var docs []domain.Document
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		body := renderRows(rows)
		if body == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Source: path,
			Page:   i + 1,
			Kind:   domain.KindTabular,
			Text:   "Sheet: " + sheet + "\n" + body,
		})
	}
	return docs, nil
}

// renderRows treats the first row as the header. Cells beyond the header, or
// under a blank header, are labelled by column number.
func renderRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header := rows[0]

	var b strings.Builder
	for _, row := range rows[1:] {
		var cells []string
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			name := ""
			if j < len(header) {
				name = strings.TrimSpace(header[j])
			}
			if name == "" {
				name = fmt.Sprintf("column %d", j+1)
			}
			cells = append(cells, name+": "+cell)
		}
		if len(cells) == 0 {
			continue
		}
		b.WriteString(strings.Join(cells, "; "))
		b.WriteByte('\n')
	}

	// a header-only table still carries its column names
	if b.Len() == 0 {
		return strings.TrimSpace(strings.Join(header, "; "))
	}
	return strings.TrimRight(b.String(), "\n")
}
