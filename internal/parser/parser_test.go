package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/models"
	"medical-rag/internal/testutil"
)

func TestLoadDocumentsPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	line := "Patient: Jane Doe, DOB 01/01/1980, diagnosed with hypertension on 05/03/2023"
	if err := testutil.WritePDF(path, line); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadDocuments(path)
	if err != nil {
		t.Fatalf("LoadDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d pages, want 1", len(docs))
	}
	for _, want := range []string{"hypertension", "05/03/2023", "Jane Doe"} {
		if !strings.Contains(docs[0].PageContent, want) {
			t.Errorf("page text %q does not contain %q", docs[0].PageContent, want)
		}
	}
	if docs[0].Metadata[models.MetaPage] != 1 || docs[0].Metadata[models.MetaSource] != path {
		t.Errorf("unexpected metadata: %v", docs[0].Metadata)
	}
}

func TestLoadDocumentsText(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
		notWant []string
	}{
		{
			name:    "plain text",
			file:    "note.txt",
			content: "Blood pressure 150/95 on 12/02/2024.",
			want:    []string{"Blood pressure 150/95 on 12/02/2024."},
		},
		{
			name:    "markdown",
			file:    "discharge.md",
			content: "# Discharge summary\n\nPatient **stable** on `amlodipine`.\n\n- follow up in 2 weeks\n",
			want:    []string{"Discharge summary", "Patient stable on amlodipine.", "follow up in 2 weeks"},
			notWant: []string{"#", "**", "`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			docs, err := LoadDocuments(path)
			if err != nil {
				t.Fatalf("LoadDocuments() error = %v", err)
			}
			if len(docs) != 1 {
				t.Fatalf("got %d documents, want 1", len(docs))
			}
			for _, w := range tt.want {
				if !strings.Contains(docs[0].PageContent, w) {
					t.Errorf("content %q missing %q", docs[0].PageContent, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(docs[0].PageContent, w) {
					t.Errorf("content %q still contains %q", docs[0].PageContent, w)
				}
			}
		})
	}
}

func TestLoadDocumentsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadDocuments(filepath.Join(dir, "scan.tiff"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unsupported extension: error = %v, want ErrUnsupportedFormat", err)
	}

	_, err = LoadDocuments(filepath.Join(dir, "missing.pdf"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: error = %v, want os.ErrNotExist", err)
	}

	corrupt := filepath.Join(dir, "corrupt.pdf")
	if err := os.WriteFile(corrupt, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDocuments(corrupt); err == nil {
		t.Error("corrupt pdf: expected error")
	}
}

func TestSplitPageReconstructsText(t *testing.T) {
	words := make([]string, 600)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	original := strings.Join(words, " ")
	page := schema.Document{PageContent: original, Metadata: map[string]any{models.MetaSource: "a.pdf", models.MetaPage: 3}}

	chunks, err := SplitPage(NewSplitter(DefaultChunkSize, DefaultChunkOverlap), page)
	if err != nil {
		t.Fatalf("SplitPage() error = %v", err)
	}
	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 4 for %d characters", len(chunks), len(original))
	}

	rebuilt := chunks[0].PageContent
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.PageContent); n > DefaultChunkSize {
			t.Errorf("chunk %d has %d characters", i, n)
		}
		if c.Metadata[models.MetaChunkID] != i+1 {
			t.Errorf("chunk %d id = %v", i, c.Metadata[models.MetaChunkID])
		}
		if c.Metadata[models.MetaSource] != "a.pdf" || c.Metadata[models.MetaPage] != 3 {
			t.Errorf("chunk %d lost page metadata: %v", i, c.Metadata)
		}
		if i == 0 {
			continue
		}
		k := overlap(rebuilt, c.PageContent)
		if k == 0 {
			t.Errorf("chunk %d does not overlap its predecessor", i)
			rebuilt += " "
		}
		if k > DefaultChunkOverlap {
			t.Errorf("chunk %d overlaps by %d characters", i, k)
		}
		rebuilt += c.PageContent[k:]
	}
	if rebuilt != original {
		t.Errorf("rebuilt text differs from original:\n got %q\nwant %q", rebuilt, original)
	}

	if page.Metadata[models.MetaChunkID] != nil {
		t.Error("SplitPage modified the page metadata")
	}
}

// overlap returns the length of the longest prefix of next that ends prev.
func overlap(prev, next string) int {
	for k := min(len(prev), len(next)); k > 0; k-- {
		if strings.HasSuffix(prev, next[:k]) {
			return k
		}
	}
	return 0
}

func TestSplitDocumentsShortAndEmptyPages(t *testing.T) {
	docs := []schema.Document{
		{PageContent: "Short note.", Metadata: map[string]any{models.MetaPage: 1}},
		{PageContent: "   ", Metadata: map[string]any{models.MetaPage: 2}},
		{PageContent: "Another short note.", Metadata: map[string]any{models.MetaPage: 3}},
	}
	chunks, err := SplitDocuments(NewSplitter(0, 0), docs)
	if err != nil {
		t.Fatalf("SplitDocuments() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].PageContent != "Short note." || chunks[1].Metadata[models.MetaPage] != 3 {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestFlatten(t *testing.T) {
	a := []schema.Document{{PageContent: "a1"}, {PageContent: "a2"}}
	b := []schema.Document{{PageContent: "b1"}}

	got := Flatten([][]schema.Document{a, nil, b})
	if len(got) != 3 {
		t.Fatalf("got %d documents, want 3", len(got))
	}
	for i, want := range []string{"a1", "a2", "b1"} {
		if got[i].PageContent != want {
			t.Errorf("doc %d = %q, want %q", i, got[i].PageContent, want)
		}
	}
	if len(Flatten(nil)) != 0 {
		t.Error("Flatten(nil) should be empty")
	}
}
