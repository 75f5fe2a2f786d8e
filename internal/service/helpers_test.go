package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"rentsearch/internal/model"
	"rentsearch/internal/repository"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func ptr[T any](v T) *T { return &v }

func jerseyCityListings() []model.Listing {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []model.Listing{
		{
			ID:          1,
			Address:     "123 Main St, Jersey City",
			Price:       1800,
			Bedroom:     2,
			Bathroom:    1,
			Description: "2BHK furnished apartment with parking",
			Source:      model.SourceImported,
			CreatedAt:   now.Add(-2 * time.Hour),
		},
		{
			ID:          2,
			Address:     "456 Oak Ave, Jersey City",
			Price:       1950,
			Bedroom:     2,
			Bathroom:    1,
			Description: "2BHK semi-furnished flat",
			Source:      model.SourceUserCreated,
			CreatedAt:   now.Add(-1 * time.Hour),
		},
	}
}

func mixedListings() []model.Listing {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return append(jerseyCityListings(),
		model.Listing{
			ID: 3, Address: "9 River Rd, Hoboken", Price: 2400, Bedroom: 1, Bathroom: 1,
			Description: "Bright studio with gym and rooftop", CreatedAt: base.Add(-3 * time.Hour),
		},
		model.Listing{
			ID: 4, Address: "77 Grove St, Jersey City", Price: 2600, Bedroom: 3, Bathroom: 2,
			Description: "Spacious 3 bedroom house with garden and parking", CreatedAt: base.Add(-4 * time.Hour),
		},
		model.Listing{
			ID: 5, Address: "", Price: 900, Description: "Missing address", CreatedAt: base,
		},
		model.Listing{
			ID: 6, Address: "1 Hudson St, Jersey City", Price: 1500, Description: "", CreatedAt: base,
		},
	)
}

// failingEmbedder simulates an unavailable embedding service
type failingEmbedder struct{ dims int }

func (f failingEmbedder) Dimensions() int { return f.dims }

func (f failingEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, ErrEmbedding
}

func (f failingEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, ErrEmbedding
}

// countingEmbedder records batch sizes of the wrapped embedder
type countingEmbedder struct {
	Embedder
	calls   int
	batches []int
}

func (c *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.batches = append(c.batches, len(texts))
	return c.Embedder.EmbedTexts(ctx, texts)
}

// stubInterpreter returns a fixed result or error
type stubInterpreter struct {
	q     *model.ParsedQuery
	err   error
	delay time.Duration
}

func (s stubInterpreter) Name() string { return "stub" }

func (s stubInterpreter) Extract(ctx context.Context, _ string) (*model.ParsedQuery, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.q, s.err
}

// brokenStore always fails
type brokenStore struct{ repository.ListingStore }

var errStoreDown = errors.New("connection refused")

func (brokenStore) Retrieve(context.Context, model.ParsedQuery, int) ([]model.Listing, error) {
	return nil, errStoreDown
}

func (brokenStore) Ping(context.Context) error { return errStoreDown }

func newTestService(store repository.ListingStore, extractor TextInterpreter, embedder Embedder) *SearchService {
	return NewSearchService(
		store,
		NewQueryInterpreter(extractor, time.Second, discardLogger),
		NewHybridScorer(embedder, 0.6, 0.4, time.Second, discardLogger),
		SearchOptions{RetrievalCap: 50, DefaultK: 10, RetrieveTimeout: time.Second},
		discardLogger,
	)
}
