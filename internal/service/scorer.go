package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"rentsearch/internal/model"
	"rentsearch/internal/utils"
)

// BM25 parameters
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Match reason constants
const (
	ReasonBedroomsMatch    = "Bedrooms match"
	ReasonBathroomsMatch   = "Bathrooms match"
	ReasonLocationMatch    = "Location match"
	ReasonPriceMatch       = "Price within budget"
	ReasonAmenitiesMatch   = "Amenities match"
	ReasonContentRelevant  = "Content relevant"
	ReasonSemanticallyNear = "Similar description"
	ReasonGeneralMatch     = "General match"
)

// Thresholds for reporting a score component as a match reason
const (
	lexicalReasonThreshold  = 0.1
	semanticReasonThreshold = 0.75
)

// neutralSemanticScore is what a zero query vector yields: cosine 0 mapped into [0,1]
const neutralSemanticScore = 0.5

var errMalformedVector = errors.New("malformed embedding vector")

// ScoreResult carries scored candidates in retrieval order
type ScoreResult struct {
	Candidates []model.ScoredCandidate
	Degraded   bool
	Reason     string
}

// HybridScorer blends embedding similarity with BM25 keyword relevance
type HybridScorer struct {
	embedder Embedder
	alpha    float64
	beta     float64
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHybridScorer creates a scorer. A nil embedder scores lexically only.
func NewHybridScorer(embedder Embedder, alpha, beta float64, embedTimeout time.Duration, logger *slog.Logger) *HybridScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridScorer{
		embedder: embedder,
		alpha:    alpha,
		beta:     beta,
		timeout:  embedTimeout,
		logger:   logger.With("component", "scorer"),
	}
}

// Mode reports whether semantic scoring is available
func (s *HybridScorer) Mode() string {
	if s.embedder == nil {
		return "lexical-only"
	}
	return "hybrid"
}

// Score computes semantic, lexical and total scores for every candidate.
// Embedding failures degrade to lexical-only scoring instead of failing.
func (s *HybridScorer) Score(ctx context.Context, q model.ParsedQuery, listings []model.Listing) ScoreResult {
	if len(listings) == 0 {
		return ScoreResult{Candidates: []model.ScoredCandidate{}}
	}

	texts := make([]string, len(listings))
	docs := make([][]string, len(listings))
	for i := range listings {
		texts[i] = listings[i].SearchText()
		docs[i] = tokenize(texts[i])
	}
	lexical := bm25Scores(tokenize(q.FreeText), docs)

	result := ScoreResult{}
	alpha := s.alpha
	semantic, err := s.semanticScores(ctx, q.FreeText, listings, texts)
	if err != nil {
		s.logger.Warn("semantic scoring unavailable, ranking by keywords only",
			"degraded", true,
			"candidates", len(listings),
			"err", err,
		)
		semantic = make([]float64, len(listings))
		alpha = 0
		result.Degraded = true
		result.Reason = model.DegradedEmbedding
	}

	result.Candidates = make([]model.ScoredCandidate, len(listings))
	for i := range listings {
		c := model.ScoredCandidate{
			Listing:       listings[i],
			SemanticScore: semantic[i],
			LexicalScore:  lexical[i],
			TotalScore:    alpha*semantic[i] + s.beta*lexical[i],
			RetrievalRank: i,
		}
		c.MatchedReasons = matchedReasons(&listings[i], q, c.SemanticScore, c.LexicalScore)
		result.Candidates[i] = c
	}
	return result
}

// semanticScores embeds the query and any listing without a usable stored
// vector in a single batch call, then maps cosine similarity into [0,1].
// A blank query scores every listing neutrally without calling the embedder.
func (s *HybridScorer) semanticScores(ctx context.Context, query string, listings []model.Listing, texts []string) ([]float64, error) {
	if s.embedder == nil {
		return nil, errors.New("no embedder configured")
	}
	if strings.TrimSpace(query) == "" {
		scores := make([]float64, len(listings))
		for i := range scores {
			scores[i] = neutralSemanticScore
		}
		return scores, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	dim := s.embedder.Dimensions()
	vectors := make([][]float32, len(listings))
	batch := []string{query}
	var pending []int
	for i := range listings {
		if len(listings[i].Embedding) == dim && dim > 0 {
			vectors[i] = listings[i].Embedding
			continue
		}
		pending = append(pending, i)
		batch = append(batch, texts[i])
	}

	embedded, err := s.embedder.EmbedTexts(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(batch) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", errMalformedVector, len(embedded), len(batch))
	}
	queryVec := embedded[0]
	for j, i := range pending {
		vectors[i] = embedded[j+1]
	}

	if err := checkVector(queryVec, dim); err != nil {
		return nil, err
	}
	scores := make([]float64, len(listings))
	for i, v := range vectors {
		if err := checkVector(v, len(queryVec)); err != nil {
			return nil, fmt.Errorf("listing %d: %w", listings[i].ID, err)
		}
		scores[i] = clamp01((cosine(queryVec, v) + 1) / 2)
	}
	return scores, nil
}

func checkVector(v []float32, dim int) error {
	if len(v) == 0 || (dim > 0 && len(v) != dim) {
		return fmt.Errorf("%w: dimension %d, want %d", errMalformedVector, len(v), dim)
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite component", errMalformedVector)
		}
	}
	return nil
}

// cosine returns 0 when either vector has zero magnitude
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// bm25Scores scores docs against the query terms using statistics of docs
// alone, normalised by the best score. No overlap yields all zeros.
func bm25Scores(query []string, docs [][]string) []float64 {
	scores := make([]float64, len(docs))
	if len(query) == 0 || len(docs) == 0 {
		return scores
	}

	terms := make(map[string]struct{}, len(query))
	for _, t := range query {
		terms[t] = struct{}{}
	}

	n := float64(len(docs))
	var totalLen float64
	df := make(map[string]int, len(terms))
	tfs := make([]map[string]int, len(docs))
	for i, doc := range docs {
		totalLen += float64(len(doc))
		tf := make(map[string]int)
		for _, tok := range doc {
			if _, ok := terms[tok]; ok {
				tf[tok]++
			}
		}
		for t := range tf {
			df[t]++
		}
		tfs[i] = tf
	}
	avgdl := totalLen / n
	if avgdl == 0 {
		return scores
	}

	var best float64
	for i, doc := range docs {
		dl := float64(len(doc))
		for t, f := range tfs[i] {
			idf := math.Log((n-float64(df[t])+0.5)/(float64(df[t])+0.5) + 1)
			tf := float64(f)
			scores[i] += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*dl/avgdl))
		}
		if scores[i] > best {
			best = scores[i]
		}
	}

	if best > 0 {
		for i := range scores {
			scores[i] /= best
		}
	}
	return scores
}

// matchedReasons explains which parts of the query a listing satisfies
func matchedReasons(l *model.Listing, q model.ParsedQuery, semantic, lexical float64) []string {
	reasons := []string{}

	if q.Location != nil && strings.Contains(strings.ToLower(l.Address), strings.ToLower(*q.Location)) {
		reasons = append(reasons, ReasonLocationMatch)
	}
	if q.MaxPrice != nil && l.Price <= *q.MaxPrice {
		reasons = append(reasons, ReasonPriceMatch)
	}
	if q.Bedrooms != nil && l.Bedroom == *q.Bedrooms {
		reasons = append(reasons, ReasonBedroomsMatch)
	}
	if q.Bathrooms != nil && l.Bathroom == *q.Bathrooms {
		reasons = append(reasons, ReasonBathroomsMatch)
	}
	if len(q.Amenities) > 0 {
		offered := append(l.Amenities.Flatten(), utils.DetectAmenities(l.Description)...)
		all := true
		for _, a := range q.Amenities {
			if !utils.MatchAmenity(a, offered) {
				all = false
				break
			}
		}
		if all {
			reasons = append(reasons, ReasonAmenitiesMatch)
		}
	}
	if lexical > lexicalReasonThreshold {
		reasons = append(reasons, ReasonContentRelevant)
	}
	if semantic > semanticReasonThreshold {
		reasons = append(reasons, ReasonSemanticallyNear)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonGeneralMatch)
	}
	return reasons
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
