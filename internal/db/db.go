package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/schema"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"medical-rag/internal/config"
	"medical-rag/internal/models"
)

type Document struct {
	bun.BaseModel  `bun:"table:documents,alias:d"`
	ID             int64           `bun:"id,pk,autoincrement"`
	IndexID        string          `bun:"index_id,notnull"`
	Content        string          `bun:"content,notnull"`
	Embedding      pgvector.Vector `bun:"embedding,notnull,type:vector"`
	SourceFilename string          `bun:"source_filename"`
	PageNumber     int             `bun:"page_number"`
	ChunkID        int             `bun:"chunk_id"`
	Metadata       map[string]any  `bun:"metadata,type:jsonb"`
	Distance       float64         `bun:"distance,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens (without dialing) a Postgres handle with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPq:
		return sql.Open("postgres", cfg.URL)
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	_, err := db.NewCreateIndex().Model((*Document)(nil)).Index("documents_index_id_idx").IfNotExists().Column("index_id").Exec(ctx)
	return err
}

func StoreDocuments(ctx context.Context, db *bun.DB, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&docs).Exec(ctx)
	return err
}

func SearchDocuments(ctx context.Context, db *bun.DB, indexID string, queryEmbedding []float32, limit int) ([]Document, error) {
	var docs []Document
	err := searchQuery(db, &docs, indexID, queryEmbedding, limit).Scan(ctx)
	return docs, err
}

func searchQuery(db *bun.DB, dest *[]Document, indexID string, queryEmbedding []float32, limit int) *bun.SelectQuery {
	return db.NewSelect().
		Model(dest).
		Column("id", "index_id", "content", "source_filename", "page_number", "chunk_id", "metadata").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(queryEmbedding)).
		Where("index_id = ?", indexID).
		OrderExpr("distance").
		Limit(limit)
}

func CountDocuments(ctx context.Context, db *bun.DB, indexID string) (int, error) {
	return db.NewSelect().Model((*Document)(nil)).Where("index_id = ?", indexID).Count(ctx)
}

func DeleteIndex(ctx context.Context, db *bun.DB, indexID string) error {
	_, err := db.NewDelete().Model((*Document)(nil)).Where("index_id = ?", indexID).Exec(ctx)
	return err
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := dropQuery(db).Exec(ctx)
	return err
}

func dropQuery(db *bun.DB) *bun.DropTableQuery {
	return db.NewDropTable().Model((*Document)(nil)).IfExists()
}

// ResetDB drops every stored index and recreates the empty table.
func ResetDB(ctx context.Context, db *bun.DB) error {
	if err := DropDocuments(ctx, db); err != nil {
		return fmt.Errorf("drop documents table: %w", err)
	}
	return InitDB(ctx, db)
}

// Store keeps one index inside the shared documents table, keyed by index id.
type Store struct {
	db      *bun.DB
	indexID string
}

func NewStore(db *bun.DB, indexID string) *Store {
	return &Store{db: db, indexID: indexID}
}

func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	rows := make([]Document, len(docs))
	for i, doc := range docs {
		rows[i] = toRow(s.indexID, doc, vectors[i])
	}
	return StoreDocuments(ctx, s.db, rows)
}

func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int) ([]schema.Document, error) {
	rows, err := SearchDocuments(ctx, s.db, s.indexID, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, len(rows))
	for i, row := range rows {
		docs[i] = schema.Document{
			PageContent: row.Content,
			Metadata:    fromRow(row),
			Score:       float32(1 - row.Distance),
		}
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return CountDocuments(ctx, s.db, s.indexID)
}

func toRow(indexID string, doc schema.Document, vector []float32) Document {
	row := Document{
		IndexID:   indexID,
		Content:   doc.PageContent,
		Embedding: pgvector.NewVector(vector),
		Metadata:  doc.Metadata,
	}
	row.SourceFilename, _ = doc.Metadata[models.MetaSource].(string)
	row.PageNumber, _ = doc.Metadata[models.MetaPage].(int)
	row.ChunkID, _ = doc.Metadata[models.MetaChunkID].(int)
	return row
}

// fromRow rebuilds metadata; jsonb turns numbers into float64, so the typed
// columns win for page and chunk.
func fromRow(row Document) map[string]any {
	meta := make(map[string]any, len(row.Metadata)+3)
	for k, v := range row.Metadata {
		meta[k] = v
	}
	if row.SourceFilename != "" {
		meta[models.MetaSource] = row.SourceFilename
	}
	if row.PageNumber != 0 {
		meta[models.MetaPage] = row.PageNumber
	}
	if row.ChunkID != 0 {
		meta[models.MetaChunkID] = row.ChunkID
	}
	if v, ok := meta[models.MetaTotalPages].(float64); ok {
		meta[models.MetaTotalPages] = int(v)
	}
	return meta
}
