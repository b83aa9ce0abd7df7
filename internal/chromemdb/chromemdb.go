package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/helper"
	"medical-rag/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	embed         chromem.EmbeddingFunc
	dbPath        string
	compress      bool
	encryptionKey string
}

const (
	compress = false
)

// NewVectorDBManager initializes a new vector database manager. An empty dbPath
// keeps everything in memory. embed is only used when a query arrives as text.
func NewVectorDBManager(dbPath string, encryptionKey string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		embed:         embed,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
	}, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &Collection{collection: c}, nil
}

// delete collection
func (m *VectorDBManager) DeleteCollection(collectionName string) error {
	err := m.db.DeleteCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// ListCollections returns the collection names in sorted order.
func (m *VectorDBManager) ListCollections() []string {
	collections := m.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export writes the named collections to an encrypted file.
func (m *VectorDBManager) Export(filePath string, collectionNames ...string) error {
	if len(m.encryptionKey) != 32 {
		return fmt.Errorf("encryption key of 32 bytes is required")
	}
	if filePath == "" {
		return fmt.Errorf("file path is required")
	}
	if err := helper.CreateFolder(filepath.Dir(filePath)); err != nil {
		return err
	}

	log.Debug().Strs("collections", collectionNames).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting vector database")
	err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, collectionNames...)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the named collections (all of them when none are named) from an encrypted export.
func (m *VectorDBManager) Import(filePath string, collectionNames ...string) error {
	err := m.db.ImportFromFile(filePath, m.encryptionKey, collectionNames...)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

// Collection is one similarity index inside the database.
type Collection struct {
	collection *chromem.Collection
}

func (c *Collection) Name() string {
	return c.collection.Name
}

// AddDocuments stores docs with their precomputed embeddings.
func (c *Collection) AddDocuments(ctx context.Context, docs []schema.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		chromemDocs[i] = chromem.Document{
			ID:        id,
			Content:   doc.PageContent,
			Metadata:  helper.StringMetadata(doc.Metadata),
			Embedding: vectors[i],
		}
	}

	err := c.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// SimilaritySearch returns up to k documents ordered by descending similarity.
func (c *Collection) SimilaritySearch(ctx context.Context, query []float32, k int) ([]schema.Document, error) {
	if n := c.collection.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	results, err := c.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       k,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, len(results))
	for i, r := range results {
		docs[i] = schema.Document{
			PageContent: r.Content,
			Metadata:    parseMetadata(r.Metadata),
			Score:       r.Similarity,
		}
	}
	return docs, nil
}

func (c *Collection) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	results, err := c.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.collection.Count(), nil
}

// parseMetadata restores the integer metadata written by the loader and chunker.
func parseMetadata(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch k {
		case models.MetaPage, models.MetaTotalPages, models.MetaChunkID:
			if n, err := strconv.Atoi(v); err == nil {
				out[k] = n
				continue
			}
		}
		out[k] = v
	}
	return out
}
