package rag

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/config"
	"medical-rag/internal/helper"
	"medical-rag/internal/index"
	"medical-rag/internal/llmservice"
	"medical-rag/internal/models"
	"medical-rag/internal/prompts"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

type RAG struct {
	llm llms.Model
	cfg *config.Config
}

func NewRAG(llm llms.Model, cfg *config.Config) *RAG {
	if cfg == nil {
		cfg = config.Default()
	}
	return &RAG{llm: llm, cfg: cfg}
}

// Generate retrieves context for task, stuffs every retrieved chunk into the
// task template together with inputs and asks the LLM once.
func (r *RAG) Generate(ctx context.Context, retriever schema.Retriever, task prompts.Task, inputs map[string]any) (*models.PromptResponse, error) {
	if err := task.Validate(inputs); err != nil {
		return nil, err
	}

	query, _ := inputs[prompts.VarQuery].(string)
	retrievalQuery := task.Instruction
	if r.cfg.RAG.QueryAwareRetrieval && query != "" {
		retrievalQuery = query
	}
	docs, err := retriever.GetRelevantDocuments(ctx, retrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: retrieve: %w", task.Name, err)
	}
	log.Debug().Str("task", task.Name).Str("retrieval_query", retrievalQuery).Int("documents", len(docs)).Msg("Retrieved context")

	values := maps.Clone(inputs)
	if values == nil {
		values = make(map[string]any, 2)
	}
	values["input_documents"] = docs
	values[prompts.VarInput] = task.Instruction

	llmChain := chains.NewLLMChain(r.llm, task.Template)
	out, err := chains.Call(ctx, chains.NewStuffDocuments(llmChain), values, llmservice.CallOptions(&r.cfg.LLM)...)
	if err != nil {
		return nil, fmt.Errorf("%s: generate: %w", task.Name, err)
	}
	text, ok := out[llmChain.OutputKey].(string)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected chain output %T", task.Name, out[llmChain.OutputKey])
	}

	return &models.PromptResponse{
		Task:      task.Name,
		Query:     query,
		Source:    helper.FormatSources(docs),
		Content:   strings.TrimSpace(thinkRe.ReplaceAllString(text, "")),
		Documents: docs,
	}, nil
}

func (r *RAG) GenerateSummary(ctx context.Context, retriever schema.Retriever) (*models.PromptResponse, error) {
	return r.Generate(ctx, retriever, prompts.Summary(), map[string]any{})
}

func (r *RAG) GenerateHistory(ctx context.Context, retriever schema.Retriever, patientInfo string) (*models.PromptResponse, error) {
	return r.Generate(ctx, retriever, prompts.History(r.cfg.RAG.CurrentYear), map[string]any{
		prompts.VarPatientInfo: patientInfo,
	})
}

func (r *RAG) GenerateResponse(ctx context.Context, retriever schema.Retriever, patientInfo, query string) (*models.PromptResponse, error) {
	return r.Generate(ctx, retriever, prompts.Response(), map[string]any{
		prompts.VarPatientInfo: patientInfo,
		prompts.VarQuery:       query,
	})
}

// SummarizeEach indexes every batch on its own and summarizes it.
func (r *RAG) SummarizeEach(ctx context.Context, b *index.Builder, batches [][]schema.Document) ([]*models.PromptResponse, error) {
	retrievers := make([]schema.Retriever, 0, len(batches))
	for _, batch := range batches {
		idx, err := index.VectorEmbedding(ctx, b, [][]schema.Document{batch}, false)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, idx)
	}
	return r.SummarizeAll(ctx, retrievers)
}

// SummarizeAll summarizes every retriever in order.
func (r *RAG) SummarizeAll(ctx context.Context, retrievers []schema.Retriever) ([]*models.PromptResponse, error) {
	summaries := make([]*models.PromptResponse, 0, len(retrievers))
	for _, retriever := range retrievers {
		res, err := r.GenerateSummary(ctx, retriever)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, res)
	}
	return summaries, nil
}

// HistoryFromSummaries indexes the summaries as one corpus and generates the
// patient history over it. Every summary is retrieved.
func (r *RAG) HistoryFromSummaries(ctx context.Context, b *index.Builder, summaries []*models.PromptResponse, patientInfo string) (*models.PromptResponse, error) {
	docs := SummaryDocuments(summaries)
	idx, err := index.VectorEmbedding(ctx, b, [][]schema.Document{docs}, true)
	if err != nil {
		return nil, err
	}
	k := idx.TopK()
	if idx.Size() > k {
		k = idx.Size()
	}
	return r.GenerateHistory(ctx, idx.AsRetriever(k), patientInfo)
}

// SummaryDocuments turns generated summaries into documents so they can be indexed.
func SummaryDocuments(summaries []*models.PromptResponse) []schema.Document {
	docs := make([]schema.Document, 0, len(summaries))
	for _, s := range summaries {
		if s == nil || strings.TrimSpace(s.Content) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: s.Content,
			Metadata: map[string]any{
				models.MetaSource: summarySource(s.Documents),
				models.MetaTask:   s.Task,
			},
		})
	}
	return docs
}

func summarySource(docs []schema.Document) string {
	var sources []string
	seen := make(map[string]bool)
	for _, d := range docs {
		src, _ := d.Metadata[models.MetaSource].(string)
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return strings.Join(sources, ", ")
}
