package repository

import (
	"context"
	"errors"
	"strings"

	"rentsearch/internal/model"
)

// DefaultRetrievalCap bounds the candidate set when the caller passes none
const DefaultRetrievalCap = 50

// ErrListingNotFound is returned by GetListingByID for unknown or ineligible listings
var ErrListingNotFound = errors.New("listing not found")

// ListingStore is the read side of the listing catalogue used by search
type ListingStore interface {
	// Retrieve returns at most limit eligible listings matching the hard
	// filters of q (location substring, inclusive max price). Without
	// filters it returns the most recently created listings.
	Retrieve(ctx context.Context, q model.ParsedQuery, limit int) ([]model.Listing, error)
	GetListingByID(ctx context.Context, id int64) (*model.Listing, error)
	BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// escapeLike quotes LIKE wildcards so user text matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRetrievalCap
	}
	return limit
}
