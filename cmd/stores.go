package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"medical-rag/internal/chromemdb"
	"medical-rag/internal/config"
	"medical-rag/internal/db"
	"medical-rag/internal/index"
)

type vectorStore struct {
	stores index.StoreFactory
	// imported holds the index names loaded from the export file.
	imported []string
	close    func()
}

// openVectorStore opens the configured store. Indexes opened during the run are
// tracked so close can export (chromem) or delete (pgvector) them.
func openVectorStore(ctx context.Context, cfg *config.Config, opts runOptions) (*vectorStore, error) {
	var names []string
	track := func(f index.StoreFactory) index.StoreFactory {
		return func(ctx context.Context, name string) (index.Store, error) {
			names = append(names, name)
			return f(ctx, name)
		}
	}

	switch cfg.VectorStore.Type {
	case config.StorePgvector:
		if opts.importIndexes {
			return nil, errors.New("-import is not supported with the pgvector store")
		}
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if opts.reset {
			log.Info().Msg("Dropping stored documents")
			err = db.ResetDB(ctx, bunDB)
		} else {
			err = db.InitDB(ctx, bunDB)
		}
		if err != nil {
			bunDB.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
		return &vectorStore{
			stores: track(index.PgvectorStores(bunDB)),
			close: func() {
				for _, name := range names {
					if err := db.DeleteIndex(context.Background(), bunDB, name); err != nil {
						log.Error().Err(err).Str("index", name).Msg("Error deleting index")
					}
				}
				if err := bunDB.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing database")
				}
			},
		}, nil

	case config.StoreChromem:
		path := cfg.VectorStore.Path
		if opts.importIndexes {
			path = ""
		}
		m, err := chromemdb.NewVectorDBManager(path, cfg.VectorStore.EncryptionKey, nil)
		if err != nil {
			return nil, err
		}
		vs := &vectorStore{stores: track(index.ChromemStores(m)), close: func() {}}
		if opts.importIndexes {
			if err := m.Import(cfg.VectorStore.ExportFile); err != nil {
				return nil, err
			}
			vs.imported = m.ListCollections()
			if len(vs.imported) == 0 {
				return nil, fmt.Errorf("%w: %s holds no indexes", index.ErrNoDocuments, cfg.VectorStore.ExportFile)
			}
			log.Info().Strs("indexes", vs.imported).Str("file", cfg.VectorStore.ExportFile).Msg("Imported indexes")
			return vs, nil
		}
		if cfg.VectorStore.ExportFile != "" {
			vs.close = func() {
				if len(names) == 0 {
					return
				}
				if err := m.Export(cfg.VectorStore.ExportFile, names...); err != nil {
					log.Error().Err(err).Msg("Error exporting indexes")
					return
				}
				log.Info().Strs("indexes", names).Str("file", cfg.VectorStore.ExportFile).Msg("Exported indexes")
			}
		}
		return vs, nil

	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}
