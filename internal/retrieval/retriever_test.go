package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

// storeStub implements core.DbClient; only the retrieval methods do anything.
type storeStub struct {
	core.DbClient

	searchResults  []models.RetrievedRule
	searchErr      error
	searchCalls    []searchCall
	byPairsResults []models.RetrievedRule
	byPairsErr     error
	count          int
	countErr       error
}

type searchCall struct {
	pairs []models.PlanetHouse
	limit int
}

func (s *storeStub) SearchRuleChunks(ctx context.Context, vec []float32, pairs []models.PlanetHouse, limit int) ([]models.RetrievedRule, error) {
	s.searchCalls = append(s.searchCalls, searchCall{pairs: pairs, limit: limit})
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if len(pairs) > 0 {
		return s.searchResults, nil
	}
	// Unfiltered fallback returns the same fixture.
	return s.searchResults, nil
}

func (s *storeStub) GetRuleChunksByPairs(ctx context.Context, pairs []models.PlanetHouse, perPair int) ([]models.RetrievedRule, error) {
	if s.byPairsErr != nil {
		return nil, s.byPairsErr
	}
	return s.byPairsResults, nil
}

func (s *storeStub) CountRuleChunks(ctx context.Context) (int, error) {
	return s.count, s.countErr
}

type embedStub struct {
	err error
}

func (e *embedStub) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (e *embedStub) ModelName() string { return "stub" }

func testChart() *models.Horoscope {
	return &models.Horoscope{
		Ascendant:   102.4,
		HouseSystem: "equal",
		Positions: map[string]models.PlanetPosition{
			"Sun":  {Longitude: 31.0, House: 10},
			"Moon": {Longitude: 120.0, House: 1},
		},
	}
}

func rules(n int) []models.RetrievedRule {
	out := make([]models.RetrievedRule, n)
	for i := range out {
		out[i] = models.RetrievedRule{
			Chunk: models.RuleChunk{ID: models.ChunkID("doc", i), Text: "rule"},
			Score: 1 - float64(i)*0.1,
		}
	}
	return out
}

func TestByQuestionReturnsStoreOrder(t *testing.T) {
	store := &storeStub{searchResults: rules(3), count: 3}
	svc := NewService(store, &embedStub{}, 5)

	got, err := svc.ByQuestion(context.Background(), "will I marry?", testChart(), 3)
	if err != nil {
		t.Fatalf("ByQuestion: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("store order not preserved at %d", i)
		}
	}
	if len(store.searchCalls) != 1 {
		t.Fatalf("expected 1 search, got %d", len(store.searchCalls))
	}
	if store.searchCalls[0].limit != 3 {
		t.Errorf("limit = %d, want 3", store.searchCalls[0].limit)
	}
	if len(store.searchCalls[0].pairs) != 2 {
		t.Errorf("chart filter lost: %d pairs", len(store.searchCalls[0].pairs))
	}
}

func TestByQuestionDefaultsTopK(t *testing.T) {
	store := &storeStub{searchResults: rules(1), count: 1}
	svc := NewService(store, &embedStub{}, 5)

	if _, err := svc.ByQuestion(context.Background(), "career?", testChart(), 0); err != nil {
		t.Fatal(err)
	}
	if store.searchCalls[0].limit != 5 {
		t.Errorf("limit = %d, want service default 5", store.searchCalls[0].limit)
	}
}

func TestByQuestionStoreFailure(t *testing.T) {
	store := &storeStub{searchErr: errors.New("connection refused")}
	svc := NewService(store, &embedStub{}, 5)

	_, err := svc.ByQuestion(context.Background(), "health?", testChart(), 5)
	var re *core.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError, got %T: %v", err, err)
	}
}

func TestByQuestionEmbedFailure(t *testing.T) {
	store := &storeStub{searchResults: rules(1)}
	svc := NewService(store, &embedStub{err: errors.New("quota")}, 5)

	_, err := svc.ByQuestion(context.Background(), "wealth?", testChart(), 5)
	var re *core.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError, got %T: %v", err, err)
	}
	if len(store.searchCalls) != 0 {
		t.Errorf("store should not be queried when embedding fails")
	}
}

func TestByQuestionEmptyIndex(t *testing.T) {
	store := &storeStub{searchResults: nil, count: 0}
	svc := NewService(store, &embedStub{}, 5)

	_, err := svc.ByQuestion(context.Background(), "education?", testChart(), 5)
	var re *core.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError for empty index, got %T: %v", err, err)
	}
	// Filtered search came up empty, so the search must have widened once.
	if len(store.searchCalls) != 2 {
		t.Errorf("expected filtered + unfiltered search, got %d calls", len(store.searchCalls))
	}
	if len(store.searchCalls[1].pairs) != 0 {
		t.Errorf("second search should be unfiltered")
	}
}

// vectorStore ranks stored chunks by cosine similarity, standing in for the
// pgvector ordering in the real store.
type vectorStore struct {
	core.DbClient

	chunks []models.RuleChunk
	vecs   [][]float32
}

func (s *vectorStore) SearchRuleChunks(ctx context.Context, vec []float32, pairs []models.PlanetHouse, limit int) ([]models.RetrievedRule, error) {
	out := make([]models.RetrievedRule, 0, len(s.chunks))
	for i, c := range s.chunks {
		out = append(out, models.RetrievedRule{Chunk: c, Score: cosine(vec, s.vecs[i])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *vectorStore) CountRuleChunks(ctx context.Context) (int, error) { return len(s.chunks), nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type fixedEmbed struct{ vec []float32 }

func (e *fixedEmbed) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = e.vec
	}
	return out, nil
}

func (e *fixedEmbed) ModelName() string { return "fixed" }

func TestByQuestionRanksSimilarChunkIntoTopK(t *testing.T) {
	// Ten chunks spread around the unit circle; the query vector sits closest
	// to chunk 3, which must come back in the top 3.
	store := &vectorStore{}
	for i := 0; i < 10; i++ {
		theta := float64(i) * 0.3
		store.chunks = append(store.chunks, models.RuleChunk{
			ID: models.ChunkID("doc", i), DocumentID: "doc", Position: i, Text: "rule",
		})
		store.vecs = append(store.vecs, []float32{float32(math.Cos(theta)), float32(math.Sin(theta)), 0})
	}
	query := []float32{float32(math.Cos(0.95)), float32(math.Sin(0.95)), 0}
	svc := NewService(store, &fixedEmbed{vec: query}, 5)

	got, err := svc.ByQuestion(context.Background(), "what does my chart say about wealth?", testChart(), 3)
	if err != nil {
		t.Fatalf("ByQuestion: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(got))
	}
	if got[0].Chunk.ID != models.ChunkID("doc", 3) {
		t.Errorf("most similar chunk ranked %q first instead", got[0].Chunk.ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d: %v then %v", i, got[i-1].Score, got[i].Score)
		}
	}
}

func TestByChart(t *testing.T) {
	store := &storeStub{byPairsResults: rules(2)}
	svc := NewService(store, &embedStub{}, 5)

	got, err := svc.ByChart(context.Background(), testChart(), 2)
	if err != nil {
		t.Fatalf("ByChart: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(got))
	}
}

func TestByChartStoreFailure(t *testing.T) {
	store := &storeStub{byPairsErr: errors.New("timeout")}
	svc := NewService(store, &embedStub{}, 5)

	_, err := svc.ByChart(context.Background(), testChart(), 2)
	var re *core.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError, got %T: %v", err, err)
	}
}
