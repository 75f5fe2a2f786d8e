package model

import (
	"fmt"
	"strings"
)

// ParsedQuery is the structured form of a user utterance.
// It is derived once per request and not modified afterwards.
type ParsedQuery struct {
	Location  *string  `json:"location,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	Bedrooms  *int     `json:"bedrooms,omitempty"`
	Bathrooms *int     `json:"bathrooms,omitempty"`
	Amenities []string `json:"amenities,omitempty"`
	FreeText  string   `json:"free_text"`
}

// FreeTextOnly builds the fallback query used when structured extraction fails
func FreeTextOnly(raw string) ParsedQuery {
	return ParsedQuery{FreeText: strings.TrimSpace(raw)}
}

// HasFilters reports whether the query constrains retrieval
func (q ParsedQuery) HasFilters() bool {
	return q.Location != nil || q.MaxPrice != nil
}

func (q ParsedQuery) String() string {
	var b strings.Builder
	b.WriteString("{")
	if q.Location != nil {
		fmt.Fprintf(&b, "location=%q ", *q.Location)
	}
	if q.MaxPrice != nil {
		fmt.Fprintf(&b, "max_price=%.0f ", *q.MaxPrice)
	}
	if q.Bedrooms != nil {
		fmt.Fprintf(&b, "bedrooms=%d ", *q.Bedrooms)
	}
	if q.Bathrooms != nil {
		fmt.Fprintf(&b, "bathrooms=%d ", *q.Bathrooms)
	}
	if len(q.Amenities) > 0 {
		fmt.Fprintf(&b, "amenities=%v ", q.Amenities)
	}
	fmt.Fprintf(&b, "free_text=%q}", q.FreeText)
	return b.String()
}

// ScoredCandidate is a retrieved listing with its score provenance
type ScoredCandidate struct {
	Listing        Listing  `json:"-"`
	SemanticScore  float64  `json:"semantic_score"`
	LexicalScore   float64  `json:"lexical_score"`
	TotalScore     float64  `json:"total_score"`
	MatchedReasons []string `json:"matched_reasons"`
	// Position in retrieval order, used as the final tie-break
	RetrievalRank int `json:"-"`
}

// SearchRequest represents a search query request
type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults *int   `json:"max_results,omitempty"`
}

// SearchResult is one entry of the ranked shortlist
type SearchResult struct {
	Listing        ListingSummary `json:"listing"`
	TotalScore     float64        `json:"total_score"`
	SemanticScore  float64        `json:"semantic_score"`
	LexicalScore   float64        `json:"lexical_score"`
	MatchedReasons []string       `json:"matched_reasons"`
}

// Degradation reasons reported on a response
const (
	DegradedInterpretation = "interpretation"
	DegradedEmbedding      = "embedding"
)

// SearchResponse represents a search result response
type SearchResponse struct {
	SearchID        string         `json:"search_id"`
	Query           string         `json:"query"`
	Parsed          ParsedQuery    `json:"parsed"`
	Results         []SearchResult `json:"results"`
	Candidates      int            `json:"candidates"`
	Degraded        bool           `json:"degraded"`
	DegradedReasons []string       `json:"degraded_reasons,omitempty"`
	Took            int64          `json:"took_ms"`
}

// EmbeddingBatchRequest represents a batch embedding update request
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem represents a single embedding with listing info
type EmbeddingItem struct {
	ListingID int64     `json:"listing_id" binding:"required"`
	Embedding []float32 `json:"embedding" binding:"required"`
}

// EmbeddingBatchResponse represents the response for batch embedding update
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
