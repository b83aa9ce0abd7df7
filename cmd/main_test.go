package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/schema"

	"medical-rag/internal/config"
	"medical-rag/internal/models"
	"medical-rag/internal/testutil"
)

var (
	bloodReport = []schema.Document{{
		PageContent: "Blood test report dated 05/03/2023. Patient diagnosed with hypertension.",
		Metadata:    map[string]any{models.MetaSource: "blood.pdf", models.MetaPage: 1},
	}}
	xrayReport = []schema.Document{{
		PageContent: "Imaging report: fracture of the left wrist, treated with a plaster cast.",
		Metadata:    map[string]any{models.MetaSource: "xray.pdf", models.MetaPage: 1},
	}}
)

func exportConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.VectorStore.ExportFile = filepath.Join(t.TempDir(), "export", "indexes.gob.enc")
	cfg.VectorStore.EncryptionKey = strings.Repeat("k", 32)
	return cfg
}

func TestExecuteExportsBeforeReturningError(t *testing.T) {
	ctx := context.Background()
	cfg := exportConfig(t)
	errLLM := errors.New("llm down")

	err := execute(ctx, cfg, &testutil.Embedder{Dim: 256}, &testutil.EchoLLM{Err: errLLM},
		[][]schema.Document{xrayReport}, runOptions{summary: true, flatten: true})
	if err == nil || !strings.Contains(err.Error(), errLLM.Error()) {
		t.Fatalf("execute() error = %v, want %v", err, errLLM)
	}
	if _, err := os.Stat(cfg.VectorStore.ExportFile); err != nil {
		t.Fatalf("export file not written: %v", err)
	}

	llm := &testutil.EchoLLM{}
	err = execute(ctx, cfg, &testutil.Embedder{Dim: 256}, llm, nil,
		runOptions{query: "Which wrist was fractured?", importIndexes: true})
	if err != nil {
		t.Fatalf("execute() with import error = %v", err)
	}
	prompt := llm.LastPrompt()
	for _, want := range []string{"fracture of the left wrist", "Which wrist was fractured?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestExecuteImportedIndexes(t *testing.T) {
	ctx := context.Background()
	cfg := exportConfig(t)

	err := execute(ctx, cfg, &testutil.Embedder{Dim: 256}, &testutil.EchoLLM{},
		[][]schema.Document{bloodReport, xrayReport}, runOptions{summary: true})
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	tests := []struct {
		name        string
		opts        runOptions
		wantErr     string
		wantPrompts int
	}{
		{name: "summary per imported index", opts: runOptions{summary: true, importIndexes: true}, wantPrompts: 2},
		{name: "query needs a single index", opts: runOptions{query: "Any fractures?", importIndexes: true}, wantErr: "holds 2 indexes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &testutil.EchoLLM{}
			err := execute(ctx, cfg, &testutil.Embedder{Dim: 256}, llm, nil, tt.opts)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("execute() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("execute() error = %v", err)
			}
			if len(llm.Prompts) != tt.wantPrompts {
				t.Errorf("sent %d prompts, want %d", len(llm.Prompts), tt.wantPrompts)
			}
		})
	}
}

func TestOpenVectorStoreImportMissingFile(t *testing.T) {
	cfg := exportConfig(t)
	if _, err := openVectorStore(context.Background(), cfg, runOptions{importIndexes: true}); err == nil {
		t.Fatal("expected error importing a missing export file")
	}
}
