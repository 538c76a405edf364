package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// LoadFile reads a document from disk. Plain text formats (.txt, .md) are
// read verbatim. For a PDF the page text must already exist next to it,
// produced by the OCR collaborator: either <stem>.txt or a <stem>_pages/
// directory of per-page .txt files; the PDF itself is only consulted to
// verify the page count lines up with the OCR output.
func LoadFile(path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("failed to read document: %w", err)
		}
		return New(stem(path), string(b)), nil
	}
}

// LoadFiles reads several documents, failing on the first unreadable one.
func LoadFiles(paths []string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		d, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func loadPDF(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return Document{}, fmt.Errorf("failed to read PDF %s: %w", path, err)
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))

	// Single sidecar text file.
	if b, err := os.ReadFile(base + ".txt"); err == nil {
		return New(stem(path), string(b)), nil
	}

	// Per-page OCR output directory.
	pagesDir := base + "_pages"
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		return Document{}, fmt.Errorf("no OCR text for %s (%d pages): expected %s.txt or %s/", path, pageCount, base, pagesDir)
	}

	var pageFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			pageFiles = append(pageFiles, filepath.Join(pagesDir, e.Name()))
		}
	}
	if len(pageFiles) == 0 {
		return Document{}, fmt.Errorf("no page text files in %s", pagesDir)
	}
	if len(pageFiles) != pageCount {
		return Document{}, fmt.Errorf("OCR output mismatch for %s: PDF has %d pages, %s has %d text files", path, pageCount, pagesDir, len(pageFiles))
	}
	sort.Strings(pageFiles)

	var sb strings.Builder
	for i, pf := range pageFiles {
		b, err := os.ReadFile(pf)
		if err != nil {
			return Document{}, fmt.Errorf("failed to read page text %s: %w", pf, err)
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.Write(b)
	}
	return New(stem(path), sb.String()), nil
}

func stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
