package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Rajan093/VastuAi/internal/core"
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string) (*GeminiEmbedder, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiEmbedder) ModelName() string { return g.modelName }

// EmbedTexts batches all texts in one request via BatchEmbedContents.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
