package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

// Result is the outcome of extracting one attachment. Degraded results
// carry an inline diagnostic instead of document text; the prompt builder
// consumes both forms identically, so a broken file never aborts its item.
type Result struct {
	Name     string
	Text     string
	Degraded bool
}

// Ok wraps successfully extracted text.
func Ok(text string) Result {
	return Result{Text: text}
}

// Failed wraps a diagnostic marker for a file that could not be read.
func Failed(diagnostic string) Result {
	return Result{Text: diagnostic, Degraded: true}
}

// File converts the file at path into plain text based on its extension.
// It never returns an error: unsupported formats and read failures of any
// kind (including parser panics on corrupt input) become degraded results.
func File(path string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed(fmt.Sprintf("(Error reading %s: %v)", formatLabel(path), r))
		}
	}()

	switch ext(path) {
	case "pdf":
		text, err := pdfText(path)
		if err != nil {
			return Failed(fmt.Sprintf("(Error reading PDF: %v)", err))
		}
		return Ok(text)
	case "docx":
		text, err := docxText(path)
		if err != nil {
			return Failed(fmt.Sprintf("(Error reading DOCX: %v)", err))
		}
		return Ok(text)
	case "txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Failed(fmt.Sprintf("(Error reading TXT: %v)", err))
		}
		return Ok(string(raw))
	default:
		return Failed(fmt.Sprintf("(unsupported file type: %s)", ext(path)))
	}
}

// pdfText concatenates per-page text in page order.
func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}

// docxText concatenates paragraph text in document order.
func docxText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", err
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, p.String())
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}

func ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func formatLabel(path string) string {
	switch ext(path) {
	case "pdf":
		return "PDF"
	case "docx":
		return "DOCX"
	case "txt":
		return "TXT"
	default:
		return "file"
	}
}
