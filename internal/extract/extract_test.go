package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileReadsPlainText(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	content := "Read chapter 3 carefully.\nThen answer question 2."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result := File(path)
	if result.Degraded {
		t.Fatalf("expected ok result, got degraded: %s", result.Text)
	}
	if result.Text != content {
		t.Fatalf("expected verbatim text, got %q", result.Text)
	}
}

func TestFileUnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "diagram.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result := File(path)
	if !result.Degraded {
		t.Fatal("expected degraded result for unsupported extension")
	}
	if result.Text != "(unsupported file type: png)" {
		t.Fatalf("unexpected marker: %q", result.Text)
	}
}

func TestFileCorruptPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result := File(path)
	if !result.Degraded {
		t.Fatal("expected degraded result for corrupt pdf")
	}
	if !strings.HasPrefix(result.Text, "(Error reading PDF:") {
		t.Fatalf("unexpected marker: %q", result.Text)
	}
}

func TestFileCorruptDOCX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result := File(path)
	if !result.Degraded {
		t.Fatal("expected degraded result for corrupt docx")
	}
	if !strings.HasPrefix(result.Text, "(Error reading DOCX:") {
		t.Fatalf("unexpected marker: %q", result.Text)
	}
}

func TestFileMissingFile(t *testing.T) {
	t.Parallel()

	result := File(filepath.Join(t.TempDir(), "absent.txt"))
	if !result.Degraded {
		t.Fatal("expected degraded result for missing file")
	}
	if !strings.HasPrefix(result.Text, "(Error reading TXT:") {
		t.Fatalf("unexpected marker: %q", result.Text)
	}
}
