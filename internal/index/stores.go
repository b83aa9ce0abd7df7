package index

import (
	"context"

	"github.com/uptrace/bun"

	"medical-rag/internal/chromemdb"
	"medical-rag/internal/db"
)

// ChromemStores opens one chromem collection per index.
func ChromemStores(m *chromemdb.VectorDBManager) StoreFactory {
	return func(ctx context.Context, name string) (Store, error) {
		c, err := m.GetOrCreateCollection(name)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// PgvectorStores keeps every index in the shared documents table under its own index id.
func PgvectorStores(bunDB *bun.DB) StoreFactory {
	return func(ctx context.Context, name string) (Store, error) {
		return db.NewStore(bunDB, name), nil
	}
}
