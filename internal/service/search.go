package service

import (
	"context"
	"log/slog"
	"time"

	"rentsearch/internal/model"
	"rentsearch/internal/repository"

	"github.com/google/uuid"
)

// SearchOptions bounds a SearchService
type SearchOptions struct {
	RetrievalCap    int
	DefaultK        int
	RetrieveTimeout time.Duration
}

// SearchService runs interpret -> retrieve -> score -> assemble
type SearchService struct {
	store       repository.ListingStore
	interpreter *QueryInterpreter
	scorer      *HybridScorer
	opts        SearchOptions
	logger      *slog.Logger
}

// NewSearchService creates a new search service
func NewSearchService(
	store repository.ListingStore,
	interpreter *QueryInterpreter,
	scorer *HybridScorer,
	opts SearchOptions,
	logger *slog.Logger,
) *SearchService {
	if opts.RetrievalCap <= 0 {
		opts.RetrievalCap = repository.DefaultRetrievalCap
	}
	if opts.DefaultK < 0 || opts.DefaultK > opts.RetrievalCap {
		opts.DefaultK = opts.RetrievalCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		store:       store,
		interpreter: interpreter,
		scorer:      scorer,
		opts:        opts,
		logger:      logger.With("component", "search"),
	}
}

// SearchEventCallback is called for streaming search events
type SearchEventCallback func(event string, data any) error

// Search answers a natural-language query with at most maxResults listings.
// maxResults == 0 yields no results, a negative value means the default
// and values above the retrieval cap are clamped to it.
func (s *SearchService) Search(ctx context.Context, query string, maxResults int) (*model.SearchResponse, error) {
	return s.run(ctx, query, maxResults, nil)
}

// SearchStream performs a search, reporting progress to callback
func (s *SearchService) SearchStream(ctx context.Context, query string, maxResults int, callback SearchEventCallback) (*model.SearchResponse, error) {
	return s.run(ctx, query, maxResults, callback)
}

func (s *SearchService) run(ctx context.Context, query string, maxResults int, callback SearchEventCallback) (*model.SearchResponse, error) {
	start := time.Now()
	emit := func(event string, data any) error {
		if callback == nil {
			return nil
		}
		return callback(event, data)
	}

	if err := emit("parsing", map[string]any{"status": "Parsing your query..."}); err != nil {
		return nil, err
	}
	interp, err := s.interpreter.Interpret(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := emit("intent", interp.Query); err != nil {
		return nil, err
	}

	resp := &model.SearchResponse{
		SearchID: uuid.NewString(),
		Query:    query,
		Parsed:   interp.Query,
		Results:  []model.SearchResult{},
	}
	if interp.Degraded {
		resp.Degraded = true
		resp.DegradedReasons = append(resp.DegradedReasons, interp.Reason)
	}

	k := s.resolveK(maxResults)
	if k == 0 {
		resp.Took = time.Since(start).Milliseconds()
		return resp, nil
	}

	if err := emit("searching", map[string]any{"status": "Searching listings..."}); err != nil {
		return nil, err
	}
	candidates, err := s.retrieve(ctx, interp.Query)
	if err != nil {
		return nil, err
	}
	resp.Candidates = len(candidates)

	if err := emit("scoring", map[string]any{"candidates": len(candidates)}); err != nil {
		return nil, err
	}
	scored := s.scorer.Score(ctx, interp.Query, candidates)
	if scored.Degraded {
		resp.Degraded = true
		resp.DegradedReasons = append(resp.DegradedReasons, scored.Reason)
	}

	for _, c := range Assemble(scored.Candidates, k) {
		resp.Results = append(resp.Results, model.SearchResult{
			Listing:        c.Listing.Summary(),
			TotalScore:     c.TotalScore,
			SemanticScore:  c.SemanticScore,
			LexicalScore:   c.LexicalScore,
			MatchedReasons: c.MatchedReasons,
		})
	}

	resp.Took = time.Since(start).Milliseconds()
	s.logger.Info("search completed",
		"search_id", resp.SearchID,
		"parsed", interp.Query.String(),
		"candidates", resp.Candidates,
		"results", len(resp.Results),
		"degraded", resp.Degraded,
		"took_ms", resp.Took,
	)
	return resp, nil
}

func (s *SearchService) resolveK(maxResults int) int {
	switch {
	case maxResults == 0:
		return 0
	case maxResults < 0:
		return s.opts.DefaultK
	case maxResults > s.opts.RetrievalCap:
		return s.opts.RetrievalCap
	}
	return maxResults
}

func (s *SearchService) retrieve(ctx context.Context, q model.ParsedQuery) ([]model.Listing, error) {
	if s.opts.RetrieveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RetrieveTimeout)
		defer cancel()
	}

	listings, err := s.store.Retrieve(ctx, q, s.opts.RetrievalCap)
	if err != nil {
		s.logger.Error("candidate retrieval failed", "err", err)
		return nil, &RetrievalError{Err: err}
	}
	if len(listings) > s.opts.RetrievalCap {
		listings = listings[:s.opts.RetrievalCap]
	}
	return listings, nil
}

// GetListing retrieves a single listing by ID
func (s *SearchService) GetListing(ctx context.Context, listingID int64) (*model.Listing, error) {
	return s.store.GetListingByID(ctx, listingID)
}

// UpdateEmbeddings updates embeddings for multiple listings
func (s *SearchService) UpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	return s.store.BatchUpdateEmbeddings(ctx, items)
}

// Status reports component health
type Status struct {
	Status        string            `json:"status"`
	Components    map[string]string `json:"components"`
	TotalListings int               `json:"total_listings"`
	Error         string            `json:"error,omitempty"`
}

// Status checks the store and describes the active interpreter and scorer
func (s *SearchService) Status(ctx context.Context) Status {
	st := Status{
		Status: "operational",
		Components: map[string]string{
			"store":       "connected",
			"interpreter": s.interpreter.Name(),
			"scorer":      s.scorer.Mode(),
		},
	}

	if err := s.store.Ping(ctx); err != nil {
		st.Status = "error"
		st.Components["store"] = "unreachable"
		st.Error = err.Error()
		return st
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		st.Status = "error"
		st.Error = err.Error()
		return st
	}
	st.TotalListings = n
	return st
}
