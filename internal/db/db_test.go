package db

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/config"
	"medical-rag/internal/models"
)

func offlineDB(t *testing.T) *Store {
	t.Helper()
	sqldb, err := ConnectDB(&config.DatabaseConfig{URL: "postgres://postgres@localhost:5432/medrag?sslmode=disable"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqldb.Close() })
	return NewStore(NewDB(sqldb, false), "idx-1")
}

func TestSearchQuery(t *testing.T) {
	s := offlineDB(t)
	var docs []Document
	q := searchQuery(s.db, &docs, "idx-1", []float32{1, 2}, 4).String()

	for _, want := range []string{"<=> '[1,2]'", "index_id = 'idx-1'", "ORDER BY distance", "LIMIT 4"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
}

func TestDropQuery(t *testing.T) {
	s := offlineDB(t)
	q := dropQuery(s.db).String()
	if !strings.Contains(q, "DROP TABLE IF EXISTS") || !strings.Contains(q, "documents") {
		t.Errorf("drop query = %q", q)
	}
}

func TestConnectDBUnknownDriver(t *testing.T) {
	if _, err := ConnectDB(&config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	sqldb, err := ConnectDB(&config.DatabaseConfig{Driver: config.DriverPq, URL: "postgres://localhost/medrag"})
	if err != nil {
		t.Fatalf("pq driver error = %v", err)
	}
	sqldb.Close()
}

func TestRowMetadataRoundTrip(t *testing.T) {
	doc := schema.Document{
		PageContent: "HbA1c 7.2% on 02/02/2024",
		Metadata: map[string]any{
			models.MetaSource:     "labs.pdf",
			models.MetaPage:       2,
			models.MetaChunkID:    3,
			models.MetaTotalPages: 4,
		},
	}
	row := toRow("idx", doc, []float32{0.1, 0.2})
	if row.SourceFilename != "labs.pdf" || row.PageNumber != 2 || row.ChunkID != 3 {
		t.Fatalf("typed columns not filled: %+v", row)
	}

	// simulate the jsonb decode
	row.Metadata = map[string]any{models.MetaSource: "labs.pdf", models.MetaPage: 2.0, models.MetaChunkID: 3.0, models.MetaTotalPages: 4.0}
	meta := fromRow(row)
	if meta[models.MetaPage] != 2 || meta[models.MetaChunkID] != 3 || meta[models.MetaTotalPages] != 4 {
		t.Errorf("metadata = %v", meta)
	}
}

func TestStoreIntegration(t *testing.T) {
	url := os.Getenv("MEDRAG_PG_URL")
	if url == "" {
		t.Skip("MEDRAG_PG_URL not set")
	}
	ctx := context.Background()
	sqldb, err := ConnectDB(&config.DatabaseConfig{URL: url})
	if err != nil {
		t.Fatal(err)
	}
	bdb := NewDB(sqldb, false)
	defer bdb.Close()
	if err := ResetDB(ctx, bdb); err != nil {
		t.Fatalf("ResetDB() error = %v", err)
	}

	indexID := uuid.NewString()
	s := NewStore(bdb, indexID)
	defer DeleteIndex(ctx, bdb, indexID)

	docs := []schema.Document{
		{PageContent: "hypertension", Metadata: map[string]any{models.MetaPage: 1}},
		{PageContent: "fracture", Metadata: map[string]any{models.MetaPage: 2}},
	}
	if err := s.AddDocuments(ctx, docs, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
	got, err := s.SimilaritySearch(ctx, []float32{1, 0.1}, 1)
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if len(got) != 1 || got[0].PageContent != "hypertension" {
		t.Errorf("SimilaritySearch() = %+v", got)
	}

	if err := ResetDB(ctx, bdb); err != nil {
		t.Fatalf("ResetDB() error = %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Errorf("Count() after reset = %d, %v", n, err)
	}
}
