// Package index embeds chunks into a similarity store and serves them back as
// a langchaingo retriever.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"medical-rag/internal/helper"
	"medical-rag/internal/parser"
)

const DefaultTopK = 4

var (
	ErrNoDocuments     = errors.New("no documents to index")
	ErrFlattenRequired = errors.New("multiple document batches require flatten")
)

// Store is a similarity store holding one index.
type Store interface {
	AddDocuments(ctx context.Context, docs []schema.Document, vectors [][]float32) error
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]schema.Document, error)
	Count(ctx context.Context) (int, error)
}

// StoreFactory opens the store with the given name, creating it when missing.
type StoreFactory func(ctx context.Context, name string) (Store, error)

// Contextualizer returns the text to embed for chunk, given the page it came from.
type Contextualizer func(ctx context.Context, page, chunk schema.Document) (string, error)

type Builder struct {
	embedder   embeddings.Embedder
	newStore   StoreFactory
	splitter   textsplitter.TextSplitter
	contextual Contextualizer
	topK       int
}

type Option func(*Builder)

func WithTopK(k int) Option {
	return func(b *Builder) {
		if k > 0 {
			b.topK = k
		}
	}
}

func WithSplitter(s textsplitter.TextSplitter) Option {
	return func(b *Builder) {
		if s != nil {
			b.splitter = s
		}
	}
}

func WithContextualizer(c Contextualizer) Option {
	return func(b *Builder) { b.contextual = c }
}

func NewBuilder(embedder embeddings.Embedder, newStore StoreFactory, opts ...Option) *Builder {
	b := &Builder{
		embedder: embedder,
		newStore: newStore,
		splitter: parser.NewSplitter(parser.DefaultChunkSize, parser.DefaultChunkOverlap),
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build chunks pages, embeds every chunk and stores them in a fresh store.
func (b *Builder) Build(ctx context.Context, pages []schema.Document) (*Index, error) {
	var chunks []schema.Document
	for _, page := range pages {
		pageChunks, err := parser.SplitPage(b.splitter, page)
		if err != nil {
			return nil, fmt.Errorf("split document: %w", err)
		}
		if b.contextual != nil {
			for i, chunk := range pageChunks {
				text, err := b.contextual(ctx, page, chunk)
				if err != nil {
					return nil, fmt.Errorf("contextualize chunk: %w", err)
				}
				pageChunks[i].PageContent = text
			}
		}
		chunks = append(chunks, pageChunks...)
	}
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.PageContent
	}
	log.Debug().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Embedding chunks")
	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	name, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	store, err := b.newStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.AddDocuments(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("store documents: %w", err)
	}
	log.Debug().Str("index", name).Int("chunks", len(chunks)).Msg("Index built")

	return &Index{
		name:     name,
		store:    store,
		embedder: b.embedder,
		topK:     b.topK,
		size:     len(chunks),
	}, nil
}

// Open wraps an existing, already populated store as an index.
func (b *Builder) Open(ctx context.Context, name string) (*Index, error) {
	store, err := b.newStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: index %s is empty", ErrNoDocuments, name)
	}
	return &Index{
		name:     name,
		store:    store,
		embedder: b.embedder,
		topK:     b.topK,
		size:     n,
	}, nil
}

// VectorEmbedding builds one index from per-document batches. With flatten the
// batches are concatenated into a single corpus; without it exactly one batch
// is indexed as-is.
func VectorEmbedding(ctx context.Context, b *Builder, batches [][]schema.Document, flatten bool) (*Index, error) {
	if flatten {
		return b.Build(ctx, parser.Flatten(batches))
	}
	switch len(batches) {
	case 0:
		return nil, ErrNoDocuments
	case 1:
		return b.Build(ctx, batches[0])
	default:
		return nil, fmt.Errorf("%w: got %d batches", ErrFlattenRequired, len(batches))
	}
}

// Index is a built, read-only similarity index.
type Index struct {
	name     string
	store    Store
	embedder embeddings.Embedder
	topK     int
	size     int
}

var _ schema.Retriever = (*Index)(nil)

func (i *Index) Name() string { return i.name }

// Size is the number of chunks stored.
func (i *Index) Size() int { return i.size }

func (i *Index) TopK() int { return i.topK }

// AsRetriever returns a view of the index returning k documents per query.
func (i *Index) AsRetriever(k int) *Index {
	c := *i
	if k > 0 {
		c.topK = k
	}
	return &c
}

func (i *Index) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := i.store.SimilaritySearch(ctx, vector, i.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	log.Debug().Str("index", i.name).Int("k", i.topK).Int("found", len(docs)).Msg("Retrieved documents")
	return docs, nil
}
