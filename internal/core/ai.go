package core

import "context"

// EmbeddingProvider computes fixed-length vectors for texts. The same
// model must be used for ingestion and query-time search or relevance
// scores are not comparable.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// LLMProvider generates text from an assembled prompt.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
