package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/llmservice"
	"medical-rag/internal/models"
)

// GenerateContext asks the LLM for a short context situating chunk within document.
func GenerateContext(ctx context.Context, llm llms.Model, document, chunk string) (string, error) {
	log.Debug().Int("chunk_len", len(chunk)).Msg("Generating context for chunk")
	prompt := fmt.Sprintf(models.ContextPromptTemplate, document, chunk)
	res, err := llmservice.GeneratePrompt(ctx, llm, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res), nil
}

// ContextFunc returns a contextualizer that prefixes each chunk with the
// LLM-generated context of its page, separated by models.ContextSeparator.
func ContextFunc(llm llms.Model) func(ctx context.Context, page, chunk schema.Document) (string, error) {
	return func(ctx context.Context, page, chunk schema.Document) (string, error) {
		situated, err := GenerateContext(ctx, llm, page.PageContent, chunk.PageContent)
		if err != nil {
			return "", err
		}
		if situated == "" {
			return chunk.PageContent, nil
		}
		return situated + models.ContextSeparator + chunk.PageContent, nil
	}
}
