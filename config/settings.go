package config

import (
	"os"
	"strconv"
	"time"

	"github.com/yooventa/tubetalk/internal/utils"
)

// Settings carries all tunables read from the environment at startup.
type Settings struct {
	Port string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK        int
	TokenBudget int

	// Providers
	GCPProject     string
	GCPLocation    string
	LLMModel       string
	EmbeddingModel string
	EmbedBatchSize int

	// Ingestion
	MaxVideoSeconds int

	// Timeouts
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration

	// Workers
	SummaryWorkers int
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

func envStr(key, def string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return def
}

// Load reads settings from the environment and validates them.
// Invalid chunking parameters are fatal at startup.
func Load() (*Settings, error) {
	const op = "config.Load"

	s := &Settings{
		Port:              envStr("PORT", "8080"),
		ChunkSize:         envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:      envInt("CHUNK_OVERLAP", 100),
		TopK:              envInt("RETRIEVAL_TOP_K", 5),
		TokenBudget:       envInt("PROMPT_TOKEN_BUDGET", 4000),
		GCPProject:        os.Getenv("GCP_PROJECT"),
		GCPLocation:       envStr("GCP_LOCATION", "us-central1"),
		LLMModel:          envStr("LLM_MODEL", "gemini-1.5-flash"),
		EmbeddingModel:    envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbedBatchSize:    envInt("EMBED_BATCH_SIZE", 16),
		MaxVideoSeconds:   envInt("MAX_VIDEO_SECONDS", 1200),
		RetrievalTimeout:  envDuration("RETRIEVAL_TIMEOUT", 15*time.Second),
		GenerationTimeout: envDuration("GENERATION_TIMEOUT", 2*time.Minute),
		SummaryWorkers:    envInt("SUMMARY_WORKERS", 2),
	}

	if s.ChunkSize <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "CHUNK_SIZE must be positive", nil)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return nil, utils.E(utils.CodeInvalidArgument, op, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", nil)
	}
	if s.TopK <= 0 {
		s.TopK = 5
	}
	return s, nil
}
