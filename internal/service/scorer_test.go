package service

import (
	"context"
	"testing"
	"time"

	"rentsearch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"2bhk", "semifurnished", "flat"}, tokenize("2BHK semi-furnished flat!"))
	assert.Empty(t, tokenize("  ...  "))
}

func TestBM25Scores(t *testing.T) {
	docs := [][]string{
		tokenize("2BHK furnished apartment with parking"),
		tokenize("2BHK semi-furnished flat"),
		tokenize("studio with gym"),
	}

	scores := bm25Scores(tokenize("2BHK furnished"), docs)
	require.Len(t, scores, 3)
	assert.Equal(t, 1.0, scores[0])
	assert.Greater(t, scores[1], 0.0)
	assert.Less(t, scores[1], scores[0])
	assert.Zero(t, scores[2])
}

func TestBM25NoOverlap(t *testing.T) {
	scores := bm25Scores(tokenize("penthouse"), [][]string{tokenize("flat"), tokenize("house")})
	assert.Equal(t, []float64{0, 0}, scores)

	assert.Equal(t, []float64{0}, bm25Scores(nil, [][]string{tokenize("flat")}))
}

func TestScoreJerseyCity(t *testing.T) {
	s := NewHybridScorer(NewHashEmbedder(256), 0.6, 0.4, time.Second, discardLogger)
	q := model.ParsedQuery{FreeText: "2BHK furnished", Location: ptr("Jersey City"), MaxPrice: ptr(2000.0), Bedrooms: ptr(2)}

	res := s.Score(context.Background(), q, jerseyCityListings())
	require.False(t, res.Degraded)
	require.Len(t, res.Candidates, 2)

	first, second := res.Candidates[0], res.Candidates[1]
	assert.Greater(t, first.LexicalScore, second.LexicalScore)
	assert.Greater(t, first.TotalScore, second.TotalScore)
	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.SemanticScore, 0.0)
		assert.LessOrEqual(t, c.SemanticScore, 1.0)
		assert.InDelta(t, 0.6*c.SemanticScore+0.4*c.LexicalScore, c.TotalScore, 1e-12)
	}
	assert.Contains(t, first.MatchedReasons, ReasonLocationMatch)
	assert.Contains(t, first.MatchedReasons, ReasonPriceMatch)
	assert.Contains(t, first.MatchedReasons, ReasonBedroomsMatch)
	assert.Contains(t, first.MatchedReasons, ReasonContentRelevant)
}

func TestScoreDegradesWithoutEmbeddings(t *testing.T) {
	s := NewHybridScorer(failingEmbedder{dims: 8}, 0.6, 0.4, time.Second, discardLogger)

	res := s.Score(context.Background(), model.ParsedQuery{FreeText: "furnished parking"}, jerseyCityListings())
	assert.True(t, res.Degraded)
	assert.Equal(t, model.DegradedEmbedding, res.Reason)
	for _, c := range res.Candidates {
		assert.Zero(t, c.SemanticScore)
		assert.InDelta(t, 0.4*c.LexicalScore, c.TotalScore, 1e-12)
	}
	assert.Greater(t, res.Candidates[0].TotalScore, 0.0)
}

func TestScoreWithoutEmbedder(t *testing.T) {
	s := NewHybridScorer(nil, 0.6, 0.4, time.Second, discardLogger)
	assert.Equal(t, "lexical-only", s.Mode())

	res := s.Score(context.Background(), model.ParsedQuery{FreeText: "flat"}, jerseyCityListings())
	assert.True(t, res.Degraded)
}

func TestScoreMalformedVectorsDegrade(t *testing.T) {
	s := NewHybridScorer(wrongSizeEmbedder{}, 0.6, 0.4, time.Second, discardLogger)

	res := s.Score(context.Background(), model.ParsedQuery{FreeText: "flat"}, jerseyCityListings())
	assert.True(t, res.Degraded)
}

// wrongSizeEmbedder advertises more dimensions than it returns
type wrongSizeEmbedder struct{}

func (wrongSizeEmbedder) Dimensions() int { return 4 }

func (wrongSizeEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (w wrongSizeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = w.EmbedText(ctx, texts[i])
	}
	return out, nil
}

func TestScoreReusesStoredEmbeddings(t *testing.T) {
	hash := NewHashEmbedder(16)
	counter := &countingEmbedder{Embedder: hash}
	s := NewHybridScorer(counter, 0.6, 0.4, time.Second, discardLogger)

	listings := jerseyCityListings()
	stored, _ := hash.EmbedText(context.Background(), listings[0].SearchText())
	listings[0].Embedding = stored
	listings[1].Embedding = []float32{1, 2, 3} // wrong dimension, re-embedded

	res := s.Score(context.Background(), model.ParsedQuery{FreeText: "furnished"}, listings)
	require.False(t, res.Degraded)
	assert.Equal(t, 1, counter.calls, "query and missing listings share one batch")
	assert.Equal(t, []int{2}, counter.batches)
}

func TestScoreEmptyInputs(t *testing.T) {
	s := NewHybridScorer(NewHashEmbedder(16), 0.6, 0.4, time.Second, discardLogger)

	res := s.Score(context.Background(), model.ParsedQuery{FreeText: "flat"}, nil)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)

	res = s.Score(context.Background(), model.ParsedQuery{FreeText: ""}, jerseyCityListings())
	require.Len(t, res.Candidates, 2)
	assert.False(t, res.Degraded)
	for _, c := range res.Candidates {
		assert.Zero(t, c.LexicalScore)
		assert.Equal(t, 0.5, c.SemanticScore)
	}
}

func TestScoreBlankFreeTextSkipsEmbedder(t *testing.T) {
	counter := &countingEmbedder{Embedder: failingEmbedder{dims: 8}}
	s := NewHybridScorer(counter, 0.6, 0.4, time.Second, discardLogger)

	res := s.Score(context.Background(), model.ParsedQuery{Location: ptr("Jersey City"), FreeText: "  "}, jerseyCityListings())
	require.Len(t, res.Candidates, 2)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Reason)
	assert.Zero(t, counter.calls)
	for _, c := range res.Candidates {
		assert.Equal(t, 0.5, c.SemanticScore)
		assert.InDelta(t, 0.3, c.TotalScore, 1e-9)
	}
}

func TestScoreWeightMonotonicity(t *testing.T) {
	q := model.ParsedQuery{FreeText: "furnished parking"}
	listings := mixedListings()[:4]

	low := NewHybridScorer(NewHashEmbedder(64), 0.6, 0.2, time.Second, discardLogger).Score(context.Background(), q, listings)
	high := NewHybridScorer(NewHashEmbedder(64), 0.6, 0.8, time.Second, discardLogger).Score(context.Background(), q, listings)

	// Raising beta never lowers a candidate's total
	for i := range listings {
		assert.GreaterOrEqual(t, high.Candidates[i].TotalScore, low.Candidates[i].TotalScore)
	}
}

func TestMatchedReasonsGeneral(t *testing.T) {
	l := jerseyCityListings()[1]
	assert.Equal(t, []string{ReasonGeneralMatch}, matchedReasons(&l, model.ParsedQuery{}, 0.5, 0))

	q := model.ParsedQuery{Amenities: []string{"garage"}}
	l0 := jerseyCityListings()[0]
	assert.Contains(t, matchedReasons(&l0, q, 0, 0), ReasonAmenitiesMatch)
}
