package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/config"
	"medical-rag/internal/embedding"
	"medical-rag/internal/helper"
	"medical-rag/internal/index"
	"medical-rag/internal/llmservice"
	"medical-rag/internal/models"
	"medical-rag/internal/parser"
	"medical-rag/internal/rag"
)

const (
	configFilePath = "./configs/config.yaml"
)

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	var files fileList
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Var(&files, "file", "Path to a patient document (repeatable)")
	summary := flag.Bool("summary", false, "Summarize the documents")
	history := flag.Bool("history", false, "Generate the patient history across document summaries")
	query := flag.String("query", "", "Question to answer about the patient")
	patientInfo := flag.String("patient-info", "", "Patient information text")
	patientInfoFile := flag.String("patient-info-file", "", "File holding the patient information text")
	flatten := flag.Bool("flatten", false, "Index all documents as one corpus")
	importIndexes := flag.Bool("import", false, "Load the indexes from vector_store.export_file instead of indexing -file documents")
	reset := flag.Bool("reset", false, "Drop and recreate the pgvector documents table before running")
	dryRun := flag.Bool("dry-run", false, "Load and chunk the documents without calling any API")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogger(&cfg.Log)
	log.Debug().Interface("rag", cfg.RAG).Str("vector_store", cfg.VectorStore.Type).Msg("Loaded config")

	if len(files) == 0 && !*importIndexes {
		log.Fatal().Msg("Please provide at least one document using the -file flag, or -import")
	}
	if *importIndexes && (cfg.VectorStore.Type != config.StoreChromem || cfg.VectorStore.ExportFile == "") {
		log.Fatal().Msg("-import needs the chromem vector store and vector_store.export_file")
	}
	if *reset && cfg.VectorStore.Type != config.StorePgvector {
		log.Fatal().Msg("-reset only applies to the pgvector vector store")
	}

	batches := make([][]schema.Document, 0, len(files))
	for _, f := range files {
		docs, err := parser.LoadDocuments(f)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading document")
		}
		batches = append(batches, docs)
	}

	if *dryRun {
		printChunkStats(cfg, files, batches)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	info := *patientInfo
	if info == "" {
		info, err = helper.ReadText(*patientInfoFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading patient info")
		}
	}

	if !*summary && !*history && *query == "" {
		*summary = true
	}

	err = run(context.Background(), cfg, batches, runOptions{
		summary:       *summary,
		history:       *history,
		query:         *query,
		patientInfo:   info,
		flatten:       *flatten,
		importIndexes: *importIndexes,
		reset:         *reset,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error running pipeline")
	}
}

type runOptions struct {
	summary       bool
	history       bool
	query         string
	patientInfo   string
	flatten       bool
	importIndexes bool
	reset         bool
}

func run(ctx context.Context, cfg *config.Config, batches [][]schema.Document, opts runOptions) error {
	embedder, err := embedding.NewEmbedder(ctx, &cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	llm, err := llmservice.NewLLM(ctx, &cfg.LLM)
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}
	return execute(ctx, cfg, embedder, llm, batches, opts)
}

// execute runs the requested tasks. The vector store is exported or cleaned up
// before it returns, also on error.
func execute(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, llm llms.Model, batches [][]schema.Document, opts runOptions) error {
	vs, err := openVectorStore(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer vs.close()

	builderOpts := []index.Option{
		index.WithTopK(cfg.RAG.TopK),
		index.WithSplitter(parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)),
	}
	if cfg.RAG.ContextualChunks {
		builderOpts = append(builderOpts, index.WithContextualizer(embedding.ContextFunc(llm)))
	}
	builder := index.NewBuilder(embedder, vs.stores, builderOpts...)
	r := rag.NewRAG(llm, cfg)

	var imported []*index.Index
	for _, name := range vs.imported {
		idx, err := builder.Open(ctx, name)
		if err != nil {
			return err
		}
		imported = append(imported, idx)
	}

	var flatIdx *index.Index
	flatIndex := func() (*index.Index, error) {
		if flatIdx != nil {
			return flatIdx, nil
		}
		if opts.importIndexes {
			if len(imported) != 1 {
				return nil, fmt.Errorf("%s holds %d indexes, one is needed (export it with -flatten)", cfg.VectorStore.ExportFile, len(imported))
			}
			flatIdx = imported[0]
			return flatIdx, nil
		}
		idx, err := index.VectorEmbedding(ctx, builder, batches, true)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		log.Info().Str("index", idx.Name()).Int("chunks", idx.Size()).Msg("Built index")
		flatIdx = idx
		return idx, nil
	}
	summarize := func() ([]*models.PromptResponse, error) {
		if opts.importIndexes {
			retrievers := make([]schema.Retriever, len(imported))
			for i, idx := range imported {
				retrievers[i] = idx
			}
			return r.SummarizeAll(ctx, retrievers)
		}
		return r.SummarizeEach(ctx, builder, batches)
	}

	var summaries []*models.PromptResponse
	if opts.summary {
		if opts.flatten {
			idx, err := flatIndex()
			if err != nil {
				return err
			}
			res, err := r.GenerateSummary(ctx, idx)
			if err != nil {
				return err
			}
			printResponse(res)
		} else {
			summaries, err = summarize()
			if err != nil {
				return err
			}
			for _, res := range summaries {
				printResponse(res)
			}
		}
	}

	if opts.history {
		if summaries == nil {
			summaries, err = summarize()
			if err != nil {
				return err
			}
		}
		res, err := r.HistoryFromSummaries(ctx, builder, summaries, opts.patientInfo)
		if err != nil {
			return err
		}
		printResponse(res)
	}

	if opts.query != "" {
		idx, err := flatIndex()
		if err != nil {
			return err
		}
		res, err := r.GenerateResponse(ctx, idx, opts.patientInfo, opts.query)
		if err != nil {
			return err
		}
		printResponse(res)
	}
	return nil
}

func setupLogger(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
	}
}

type chunkStats struct {
	File   string `json:"file"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

func printChunkStats(cfg *config.Config, files []string, batches [][]schema.Document) {
	splitter := parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	stats := make([]chunkStats, len(batches))
	for i, batch := range batches {
		chunks, err := parser.SplitDocuments(splitter, batch)
		if err != nil {
			log.Fatal().Err(err).Msg("Error splitting document")
		}
		stats[i] = chunkStats{File: files[i], Pages: len(batch), Chunks: len(chunks)}
	}
	helper.PrettyPrint(stats)
}

func printResponse(res *models.PromptResponse) {
	if res.Query != "" {
		log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", res.Query)
	}

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", res.Source)

	log.Info().Str("task", res.Task).Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", res.Content)
}
