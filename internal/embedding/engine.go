// Package embedding provides vector embedding generation for semantic
// follow-up detection. Supports multiple backends: Ollama (local) and
// Google GenAI (cloud), plus a null engine for running without any
// embedding capability at all.
package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"sqltalk/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string

	// Available reports whether the engine can actually produce
	// embeddings. The null engine returns false; callers branch on this
	// flag instead of probing with a throwaway Embed call.
	Available() bool
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama", "genai", or "none"
	Provider string `yaml:"provider"`

	// Ollama configuration
	OllamaEndpoint string        `yaml:"ollama_endpoint"` // Default: DefaultOllamaEndpoint
	OllamaModel    string        `yaml:"ollama_model"`    // Default: DefaultOllamaModel
	OllamaTimeout  time.Duration `yaml:"ollama_timeout"`  // Default: DefaultOllamaTimeout

	// GenAI configuration
	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"` // Default: "gemini-embedding-001"
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		OllamaEndpoint: DefaultOllamaEndpoint,
		OllamaModel:    DefaultOllamaModel,
		OllamaTimeout:  DefaultOllamaTimeout,
		GenAIModel:     "gemini-embedding-001",
	}
}

// NewEngine creates an embedding engine based on configuration.
// Provider "none" (or empty) yields the null engine rather than an error:
// running without embeddings is a supported degraded mode, not a failure.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("Creating embedding engine with provider=%s", cfg.Provider)

	switch cfg.Provider {
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.OllamaTimeout)
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	case "none", "":
		logging.Embedding("No embedding provider configured, using null engine")
		return NewNullEngine(), nil
	default:
		err := fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'genai' or 'none')", cfg.Provider)
		logging.Get(logging.CategoryEmbedding).Error("Unsupported embedding provider: %s", cfg.Provider)
		return nil, err
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical directions.
// A zero-magnitude vector yields 0 with no error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// Mean computes the element-wise mean of a set of equal-length vectors.
// Used to build intent centroids. Returns nil on empty input.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			sum[i] += float64(v[i])
		}
	}
	mean := make([]float32, dim)
	for i, s := range sum {
		mean[i] = float32(s / float64(len(vectors)))
	}
	return mean
}
