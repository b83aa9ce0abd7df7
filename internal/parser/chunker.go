package parser

import (
	"maps"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"medical-rag/internal/models"
)

const (
	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
)

// NewSplitter returns a recursive character splitter. Non-positive values fall
// back to the defaults.
func NewSplitter(chunkSize, chunkOverlap int) textsplitter.TextSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
}

// SplitPage splits one page into chunks. Each chunk carries a copy of the page
// metadata plus a 1-based chunk id.
func SplitPage(splitter textsplitter.TextSplitter, page schema.Document) ([]schema.Document, error) {
	texts, err := splitter.SplitText(page.PageContent)
	if err != nil {
		return nil, err
	}
	chunks := make([]schema.Document, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		meta := maps.Clone(page.Metadata)
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta[models.MetaChunkID] = len(chunks) + 1
		chunks = append(chunks, schema.Document{PageContent: t, Metadata: meta})
	}
	return chunks, nil
}

func SplitDocuments(splitter textsplitter.TextSplitter, docs []schema.Document) ([]schema.Document, error) {
	var chunks []schema.Document
	for _, doc := range docs {
		c, err := SplitPage(splitter, doc)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c...)
	}
	return chunks, nil
}

// Flatten concatenates per-file document lists into one corpus, keeping order.
func Flatten(batches [][]schema.Document) []schema.Document {
	var n int
	for _, b := range batches {
		n += len(b)
	}
	out := make([]schema.Document, 0, n)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}
