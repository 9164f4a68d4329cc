package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"docchat/internal/domain"
	"docchat/internal/port"
)

var (
	_ port.DocumentLoader = (*Selector)(nil)
	_ port.Loader         = (*PlainTextLoader)(nil)
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		path string
		want domain.DocumentKind
	}{
		{"notes.txt", domain.KindPlainText},
		{"README.MD", domain.KindPlainText},
		{"page.html", domain.KindPlainText},
		{"data.csv", domain.KindTabular},
		{"book.xlsx", domain.KindTabular},
		{"paper.pdf", domain.KindPageDocument},
		{"letter.docx", domain.KindPageDocument},
		{"blob.xyz", domain.KindGeneric},
		{"Makefile", domain.KindGeneric},
	}

	for _, tt := range tests {
		if got := KindFor(tt.path); got != tt.want {
			t.Errorf("KindFor(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestSelector_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("\xEF\xBB\xBFThe capital of France is Paris."))

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Text != "The capital of France is Paris." {
		t.Errorf("unexpected text %q", docs[0].Text)
	}
	if docs[0].Kind != domain.KindPlainText || docs[0].Source != path {
		t.Errorf("unexpected provenance: %+v", docs[0])
	}
}

func TestSelector_HTMLStripsScripts(t *testing.T) {
	dir := t.TempDir()
	html := `<html><head><title>Guide</title><style>p{color:red}</style></head>
<body><h1>Intro</h1><script>var secret = 1;</script><p>Hello   world</p></body></html>`
	path := writeFile(t, dir, "page.html", []byte(html))

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	text := docs[0].Text
	if strings.Contains(text, "secret") || strings.Contains(text, "color") {
		t.Errorf("script/style content leaked: %q", text)
	}
	for _, want := range []string{"Guide", "Intro", "Hello world"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
}

func TestSelector_WhitespaceOnlyDropped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.md", []byte("  \n\t \n"))

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestSelector_UnknownExtensionEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.xyz", nil)

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestSelector_MissingFile(t *testing.T) {
	if _, err := NewSelector().Load(filepath.Join(t.TempDir(), "gone.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGenericLoader_Binary(t *testing.T) {
	dir := t.TempDir()
	data := []byte{0x00, 0x01, 'a', 'b', 0x02, 'h', 'e', 'l', 'l', 'o', ' ', 'b', 'i', 'n', 0xff, 'x', 'y', 0x00}
	path := writeFile(t, dir, "blob.bin", data)

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Text != "hello bin" {
		t.Errorf("expected only the long printable run, got %q", docs[0].Text)
	}
	if docs[0].Kind != domain.KindGeneric {
		t.Errorf("expected generic kind, got %s", docs[0].Kind)
	}
}

func TestGenericLoader_UTF8(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.conf", []byte("key = värde"))

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if docs[0].Text != "key = värde" {
		t.Errorf("unexpected text %q", docs[0].Text)
	}
}

func TestTabularLoader_CSV(t *testing.T) {
	dir := t.TempDir()
	csv := "city,country\nParis,France\nBerlin,Germany,extra\n,\n"
	path := writeFile(t, dir, "cities.csv", []byte(csv))

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	want := "city: Paris; country: France\ncity: Berlin; country: Germany; column 3: extra"
	if docs[0].Text != want {
		t.Errorf("got %q, want %q", docs[0].Text, want)
	}
}

func TestTabularLoader_TSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "t.tsv", []byte("a\tb\n1\t2\n"))

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if docs[0].Text != "a: 1; b: 2" {
		t.Errorf("unexpected text %q", docs[0].Text)
	}
}

func TestTabularLoader_Workbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "name")
	f.SetCellValue("Sheet1", "B1", "role")
	f.SetCellValue("Sheet1", "A2", "Ada")
	f.SetCellValue("Sheet1", "B2", "engineer")
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 non-empty sheet, got %d", len(docs))
	}
	if docs[0].Page != 1 {
		t.Errorf("expected sheet number 1, got %d", docs[0].Page)
	}
	if !strings.Contains(docs[0].Text, "name: Ada; role: engineer") {
		t.Errorf("unexpected text %q", docs[0].Text)
	}
}

func TestPageLoader_DOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "letter.docx")

	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Dear reader,</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t></w:r><w:r><w:tab/><w:t>value</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body>
</w:document>`

	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	docs, err := NewSelector().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Text != "Dear reader,\ncell\tvalue" {
		t.Errorf("unexpected text %q", docs[0].Text)
	}
	if docs[0].Page != 1 || docs[0].Kind != domain.KindPageDocument {
		t.Errorf("unexpected provenance: %+v", docs[0])
	}
}

func TestPageLoader_InvalidPDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", []byte("not a pdf at all"))

	if _, err := NewSelector().Load(path); err == nil {
		t.Error("expected error for invalid PDF")
	}
}
