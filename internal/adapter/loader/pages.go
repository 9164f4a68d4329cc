package loader

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"docchat/internal/domain"
)

// PageLoader extracts page-oriented documents: PDF yields one document per
// page, DOCX yields a single page.
type PageLoader struct{}

func NewPageLoader() *PageLoader {
	return &PageLoader{}
}

func (l *PageLoader) Kind() domain.DocumentKind {
	return domain.KindPageDocument
}

func (l *PageLoader) Load(path string) ([]domain.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return loadDOCX(path)
	}
	return loadPDF(path)
}

func loadPDF(path string) (docs []domain.Document, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		docs = append(docs, domain.Document{
			Source: path,
			Page:   i,
			Kind:   domain.KindPageDocument,
			Text:   text,
		})
	}
	return docs, nil
}

func loadDOCX(path string) ([]domain.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		text, err := documentXMLText(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse docx body: %w", err)
		}
		return []domain.Document{{
			Source: path,
			Page:   1,
			Kind:   domain.KindPageDocument,
			Text:   text,
		}}, nil
	}
	return nil, errors.New("docx has no word/document.xml")
}

// documentXMLText walks WordprocessingML tokens, so text inside tables and
// text boxes is found too. Paragraphs end lines; tabs and breaks are kept.
func documentXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
