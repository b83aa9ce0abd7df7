package models

import "github.com/tmc/langchaingo/schema"

// PromptResponse is the outcome of one retrieval-augmented generation call.
type PromptResponse struct {
	Task      string
	Query     string
	Source    string
	Content   string
	Documents []schema.Document
}
