package llmservice

import (
	"context"
	"testing"

	"medical-rag/internal/config"
	"medical-rag/internal/testutil"
)

func TestNewLLM(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{name: "groq", cfg: config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "https://api.groq.com/openai/v1", Model: "llama3-70b-8192", Key: "gsk-test"}},
		{name: "ollama", cfg: config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3"}},
		{name: "unknown", cfg: config.LLMConfig{Provider: "bard", Model: "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLM(context.Background(), &tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLLM() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCallOptions(t *testing.T) {
	if got := len(CallOptions(&config.LLMConfig{})); got != 1 {
		t.Errorf("got %d options, want 1", got)
	}
	if got := len(CallOptions(&config.LLMConfig{MaxTokens: 512})); got != 2 {
		t.Errorf("got %d options, want 2", got)
	}
}

func TestGeneratePrompt(t *testing.T) {
	llm := &testutil.EchoLLM{}
	got, err := GeneratePrompt(context.Background(), llm, "hello")
	if err != nil {
		t.Fatalf("GeneratePrompt() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("GeneratePrompt() = %q, want hello", got)
	}
}
