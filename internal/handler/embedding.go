package handler

import (
	"fmt"
	"net/http"

	"rentsearch/internal/model"
	"rentsearch/internal/service"

	"github.com/gin-gonic/gin"
)

const maxEmbeddingBatch = 500

// EmbeddingHandler backfills precomputed listing vectors
type EmbeddingHandler struct {
	searchService *service.SearchService
	dimensions    int
}

// NewEmbeddingHandler accepts vectors of exactly dimensions elements, the
// size the configured embedder produces for queries.
func NewEmbeddingHandler(searchService *service.SearchService, dimensions int) *EmbeddingHandler {
	return &EmbeddingHandler{
		searchService: searchService,
		dimensions:    dimensions,
	}
}

// BatchUpdate handles POST /api/v1/embeddings/batch
func (h *EmbeddingHandler) BatchUpdate(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := validateBatch(req.Embeddings, h.dimensions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	success, failures := h.searchService.UpdateEmbeddings(c.Request.Context(), req.Embeddings)
	resp := model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(req.Embeddings) - success,
		Errors:  failures,
	}

	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusPartialContent
	}
	c.JSON(status, resp)
}

// validateBatch rejects the whole batch before any vector is written
func validateBatch(items []model.EmbeddingItem, dimensions int) error {
	switch {
	case len(items) == 0:
		return fmt.Errorf("no embeddings provided")
	case len(items) > maxEmbeddingBatch:
		return fmt.Errorf("batch of %d embeddings exceeds limit of %d", len(items), maxEmbeddingBatch)
	}

	seen := make(map[int64]struct{}, len(items))
	for i, item := range items {
		if item.ListingID <= 0 {
			return fmt.Errorf("invalid listing_id %d at index %d", item.ListingID, i)
		}
		if _, dup := seen[item.ListingID]; dup {
			return fmt.Errorf("duplicate listing_id %d at index %d", item.ListingID, i)
		}
		seen[item.ListingID] = struct{}{}

		if len(item.Embedding) != dimensions {
			return fmt.Errorf("invalid embedding dimension at index %d: got %d, expected %d", i, len(item.Embedding), dimensions)
		}
	}
	return nil
}
