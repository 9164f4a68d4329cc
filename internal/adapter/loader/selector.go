// Package loader turns source files into raw text documents. A Selector maps
// each file extension to one of a fixed set of extraction strategies; any
// extension it does not know falls back to generic best-effort extraction.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"docchat/internal/domain"
	"docchat/internal/port"
)

var extensionKinds = map[string]domain.DocumentKind{
	".txt":      domain.KindPlainText,
	".text":     domain.KindPlainText,
	".md":       domain.KindPlainText,
	".markdown": domain.KindPlainText,
	".rst":      domain.KindPlainText,
	".log":      domain.KindPlainText,
	".json":     domain.KindPlainText,
	".yaml":     domain.KindPlainText,
	".yml":      domain.KindPlainText,
	".xml":      domain.KindPlainText,
	".html":     domain.KindPlainText,
	".htm":      domain.KindPlainText,

	".csv":  domain.KindTabular,
	".tsv":  domain.KindTabular,
	".xlsx": domain.KindTabular,
	".xlsm": domain.KindTabular,

	".pdf":  domain.KindPageDocument,
	".docx": domain.KindPageDocument,
}

// KindFor returns the extraction kind for a path, decided by its extension.
func KindFor(path string) domain.DocumentKind {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return domain.KindGeneric
}

// Selector dispatches files to the loader registered for their kind.
type Selector struct {
	loaders map[domain.DocumentKind]port.Loader
}

// NewSelector creates a Selector with the built-in loaders.
func NewSelector() *Selector {
	s := &Selector{loaders: make(map[domain.DocumentKind]port.Loader)}
	s.Register(NewPlainTextLoader())
	s.Register(NewTabularLoader())
	s.Register(NewPageLoader())
	s.Register(NewGenericLoader())
	return s
}

// Register installs l for its kind, replacing any previous loader.
func (s *Selector) Register(l port.Loader) {
	s.loaders[l.Kind()] = l
}

// Load extracts the documents of one file. Whitespace-only documents are
// dropped, so a file with nothing to index yields an empty slice.
func (s *Selector) Load(path string) ([]domain.Document, error) {
	kind := KindFor(path)
	l, ok := s.loaders[kind]
	if !ok {
		l, ok = s.loaders[domain.KindGeneric]
		if !ok {
			return nil, fmt.Errorf("no loader for %s", path)
		}
	}

	docs, err := l.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s loader: %w", l.Kind(), err)
	}

	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
