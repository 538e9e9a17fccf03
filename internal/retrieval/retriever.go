package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

// Service fetches the rule passages relevant to a chart or a question.
// Hybrid lookup: semantic similarity over the question embedding, filtered to
// the planet-house combinations actually present in the native's chart.
type Service struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	topK     int
}

func NewService(db core.DbClient, embedder core.EmbeddingProvider, topK int) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{db: db, embedder: embedder, topK: topK}
}

// TopK returns the default result count for question retrieval.
func (s *Service) TopK() int { return s.topK }

// ByChart fetches up to perPair rule passages for every planet-house
// combination in the chart. Used for the initial reading, where there is no
// question to embed yet.
func (s *Service) ByChart(ctx context.Context, chart *models.Horoscope, perPair int) ([]models.RetrievedRule, error) {
	if chart == nil {
		return nil, &core.RetrievalError{Err: errors.New("no chart")}
	}
	if perPair <= 0 {
		perPair = 1
	}

	rules, err := s.db.GetRuleChunksByPairs(ctx, chart.Pairs(), perPair)
	if err != nil {
		return nil, &core.RetrievalError{Err: err}
	}
	if len(rules) == 0 {
		return nil, s.emptyIndexErr(ctx)
	}
	return rules, nil
}

// ByQuestion embeds the question and runs a similarity search restricted to
// the chart's planet-house pairs. When the chart filter matches nothing the
// search widens to the whole index before giving up.
func (s *Service) ByQuestion(ctx context.Context, question string, chart *models.Horoscope, k int) ([]models.RetrievedRule, error) {
	if k <= 0 {
		k = s.topK
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, &core.RetrievalError{Err: fmt.Errorf("embed question: %w", err)}
	}
	if len(vecs) != 1 {
		return nil, &core.RetrievalError{Err: fmt.Errorf("embed question: got %d vectors", len(vecs))}
	}

	var pairs []models.PlanetHouse
	if chart != nil {
		pairs = chart.Pairs()
	}

	rules, err := s.db.SearchRuleChunks(ctx, vecs[0], pairs, k)
	if err != nil {
		return nil, &core.RetrievalError{Err: err}
	}
	if len(rules) == 0 && len(pairs) > 0 {
		rules, err = s.db.SearchRuleChunks(ctx, vecs[0], nil, k)
		if err != nil {
			return nil, &core.RetrievalError{Err: err}
		}
	}
	if len(rules) == 0 {
		return nil, s.emptyIndexErr(ctx)
	}
	return rules, nil
}

// emptyIndexErr distinguishes "no rules ingested yet" from a store outage.
func (s *Service) emptyIndexErr(ctx context.Context) error {
	n, err := s.db.CountRuleChunks(ctx)
	if err != nil {
		return &core.RetrievalError{Err: err}
	}
	if n == 0 {
		return &core.RetrievalError{Err: errors.New("rule index is empty; ingest a corpus first")}
	}
	return &core.RetrievalError{Err: errors.New("no matching rules found")}
}
