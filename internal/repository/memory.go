package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"rentsearch/internal/model"
)

// MemoryStore is an in-process ListingStore, loaded once from a fixture
type MemoryStore struct {
	mu       sync.RWMutex
	listings []model.Listing // most recent first
	logger   *slog.Logger
}

// NewMemoryStore creates a store holding a copy of listings
func NewMemoryStore(listings []model.Listing) *MemoryStore {
	sorted := make([]model.Listing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &MemoryStore{
		listings: sorted,
		logger:   slog.Default().With("component", "memory-store"),
	}
}

// fixtureListing tells a missing price apart from a zero one
type fixtureListing struct {
	model.Listing
	Price *float64 `json:"price"`
}

// LoadMemoryStore reads a JSON array of listings from path.
// Records without a price are ineligible and are not loaded.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listings file: %w", err)
	}

	var records []fixtureListing
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse listings file %s: %w", path, err)
	}

	logger := slog.Default().With("component", "memory-store")
	listings := make([]model.Listing, 0, len(records))
	for _, rec := range records {
		if rec.Price == nil {
			logger.Debug("skipping listing without price", "id", rec.ID)
			continue
		}
		l := rec.Listing
		l.Price = *rec.Price
		listings = append(listings, l)
	}
	return NewMemoryStore(listings), nil
}

// Retrieve implements ListingStore
func (m *MemoryStore) Retrieve(ctx context.Context, q model.ParsedQuery, limit int) ([]model.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	var location string
	if q.Location != nil {
		location = strings.ToLower(*q.Location)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Listing, 0, min(limit, len(m.listings)))
	for _, l := range m.listings {
		if len(out) == limit {
			break
		}
		if err := l.Validate(); err != nil {
			m.logger.Debug("skipping ineligible listing", "id", l.ID, "err", err)
			continue
		}
		if q.Location != nil && !strings.Contains(strings.ToLower(l.Address), location) {
			continue
		}
		if q.MaxPrice != nil && l.Price > *q.MaxPrice {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// GetListingByID implements ListingStore
func (m *MemoryStore) GetListingByID(ctx context.Context, id int64) (*model.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.listings {
		if l.ID == id && l.Validate() == nil {
			return &l, nil
		}
	}
	return nil, ErrListingNotFound
}

// BatchUpdateEmbeddings implements ListingStore
func (m *MemoryStore) BatchUpdateEmbeddings(_ context.Context, items []model.EmbeddingItem) (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := make(map[int64]int, len(m.listings))
	for i, l := range m.listings {
		index[l.ID] = i
	}

	success := 0
	var errs []string
	for _, item := range items {
		i, ok := index[item.ListingID]
		if !ok {
			errs = append(errs, fmt.Sprintf("listing_id %d: %v", item.ListingID, ErrListingNotFound))
			continue
		}
		// Replace rather than mutate so earlier Retrieve results keep their vectors
		m.listings[i].Embedding = append([]float32(nil), item.Embedding...)
		success++
	}
	return success, errs
}

// Count implements ListingStore
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, l := range m.listings {
		if l.Validate() == nil {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }
