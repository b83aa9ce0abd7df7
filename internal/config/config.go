package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("missing api key")

const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"

	StoreChromem  = "chromem"
	StorePgvector = "pgvector"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

// LLMConfig describes one hosted model endpoint, used for both generation and embeddings.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	KeyEnv            string  `yaml:"key_env"`
	Key               string  `yaml:"-"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

type RAGConfig struct {
	ChunkSize           int  `yaml:"chunk_size"`
	ChunkOverlap        int  `yaml:"chunk_overlap"`
	TopK                int  `yaml:"top_k"`
	ContextualChunks    bool `yaml:"contextual_chunks"`
	QueryAwareRetrieval bool `yaml:"query_aware_retrieval"`
	CurrentYear         int  `yaml:"current_year"`
}

type VectorStoreConfig struct {
	Type          string `yaml:"type"`
	Path          string `yaml:"path"`
	ExportFile    string `yaml:"export_file"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
}

// LoadConfig reads the yaml file at path over the defaults, so keys absent from
// the file keep their default. A missing file yields the defaults. API keys are
// always taken from the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	cfg.LLM.Key = os.Getenv(cfg.LLM.KeyEnv)
	cfg.EmbedLLM.Key = os.Getenv(cfg.EmbedLLM.KeyEnv)
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			BaseURL:  "https://api.groq.com/openai/v1",
			Model:    "llama3-70b-8192",
			KeyEnv:   "GROQ_API_KEY",
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderGoogleAI,
			Model:    "embedding-001",
			KeyEnv:   "GOOGLE_API_KEY",
		},
		RAG:         RAGConfig{ChunkOverlap: 200},
		VectorStore: VectorStoreConfig{Type: StoreChromem},
		Database:    DatabaseConfig{Driver: DriverPgdriver},
		Log:         LogConfig{Level: "info", Pretty: true},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.EmbedLLM.BatchSize <= 0 {
		cfg.EmbedLLM.BatchSize = 32
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = StoreChromem
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks that every configured provider has what it needs to make a call.
func (c *Config) Validate() error {
	if err := c.LLM.validate("llm"); err != nil {
		return err
	}
	if err := c.EmbedLLM.validate("embed_llm"); err != nil {
		return err
	}
	if c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("rag.chunk_overlap (%d) must not be negative", c.RAG.ChunkOverlap)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.VectorStore.Type {
	case StoreChromem:
		if c.VectorStore.ExportFile != "" && len(c.VectorStore.EncryptionKey) != 32 {
			return fmt.Errorf("vector_store.encryption_key must be 32 bytes when export_file is set")
		}
	case StorePgvector:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the %s vector store", StorePgvector)
		}
		if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPq {
			return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	return nil
}

func (l *LLMConfig) validate(section string) error {
	switch l.Provider {
	case ProviderOpenAI, ProviderGoogleAI:
		if l.Key == "" {
			return fmt.Errorf("%s: %w (set %s)", section, ErrMissingAPIKey, l.KeyEnv)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%s: unknown provider: %s", section, l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("%s: model is required", section)
	}
	return nil
}
