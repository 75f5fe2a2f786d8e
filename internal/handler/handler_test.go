package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rentsearch/internal/model"
	"rentsearch/internal/repository"
	"rentsearch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testListings() []model.Listing {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []model.Listing{
		{ID: 1, Address: "123 Main St, Jersey City", Price: 1800, Bedroom: 2, Bathroom: 1,
			Description: "2BHK furnished apartment with parking", CreatedAt: now},
		{ID: 2, Address: "456 Oak Ave, Jersey City", Price: 1950, Bedroom: 2, Bathroom: 1,
			Description: "2BHK semi-furnished flat", CreatedAt: now.Add(time.Hour)},
	}
}

func newTestRouter(store repository.ListingStore) *gin.Engine {
	svc := service.NewSearchService(
		store,
		service.NewQueryInterpreter(service.NewRuleInterpreter(), time.Second, quiet),
		service.NewHybridScorer(service.NewHashEmbedder(32), 0.6, 0.4, time.Second, quiet),
		service.SearchOptions{RetrievalCap: 50, DefaultK: 10, RetrieveTimeout: time.Second},
		quiet,
	)
	return NewRouter(svc, RouterOptions{AllowedOrigins: "*", EmbeddingDimensions: 4, Version: "test"})
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	r := newTestRouter(repository.NewMemoryStore(testListings()))

	w := do(t, r, http.MethodPost, "/api/v1/search", `{"query": "2BHK furnished near Jersey City under $2000", "max_results": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(1), resp.Results[0].Listing.ID)
	assert.Equal(t, "Jersey City", *resp.Parsed.Location)
}

func TestSearchEndpointErrors(t *testing.T) {
	r := newTestRouter(repository.NewMemoryStore(testListings()))

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "malformed JSON", body: `{`, code: http.StatusBadRequest},
		{name: "missing query", body: `{}`, code: http.StatusBadRequest},
		{name: "blank query", body: `{"query": "   "}`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, do(t, r, http.MethodPost, "/api/v1/search", tt.body).Code)
		})
	}

	down := newTestRouter(failingStore{repository.NewMemoryStore(nil)})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodPost, "/api/v1/search", `{"query": "flat"}`).Code)
}

func TestSearchEndpointZeroResults(t *testing.T) {
	r := newTestRouter(repository.NewMemoryStore(testListings()))

	w := do(t, r, http.MethodPost, "/api/v1/search", `{"query": "apartments", "max_results": 0}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
}

func TestSearchStreamEndpoint(t *testing.T) {
	r := newTestRouter(repository.NewMemoryStore(testListings()))

	w := do(t, r, http.MethodPost, "/api/v1/search/stream", `{"query": "furnished flat"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	var order []int
	for _, ev := range []string{"start", "parsing", "intent", "searching", "scoring", "results", "done"} {
		idx := strings.Index(body, "event: "+ev+"\n")
		require.GreaterOrEqual(t, idx, 0, "missing event %s", ev)
		order = append(order, idx)
	}
	assert.IsIncreasing(t, order)
}

func TestGetListingEndpoint(t *testing.T) {
	r := newTestRouter(repository.NewMemoryStore(testListings()))

	w := do(t, r, http.MethodGet, "/api/v1/listings/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var l model.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
	assert.Equal(t, int64(2), l.ID)

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/v1/listings/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/listings/abc", "").Code)
}

func TestEmbeddingBatchEndpoint(t *testing.T) {
	r := newTestRouter(repository.NewMemoryStore(testListings()))

	body, _ := json.Marshal(model.EmbeddingBatchRequest{Embeddings: []model.EmbeddingItem{
		{ListingID: 1, Embedding: []float32{1, 0, 0, 0}},
	}})
	w := do(t, r, http.MethodPost, "/api/v1/embeddings/batch", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.EmbeddingBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Success)

	w = do(t, r, http.MethodPost, "/api/v1/embeddings/batch", `{"embeddings": [{"listing_id": 1, "embedding": [1, 2]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "expected 4")

	w = do(t, r, http.MethodPost, "/api/v1/embeddings/batch", `{"embeddings": [{"listing_id": 99, "embedding": [1, 2, 3, 4]}]}`)
	assert.Equal(t, http.StatusPartialContent, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/embeddings/batch", `{"embeddings": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, newTestRouter(repository.NewMemoryStore(testListings())), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body))
	assert.Equal(t, "operational", body["status"])
	assert.Equal(t, float64(2), body["total_listings"])

	down := newTestRouter(failingStore{repository.NewMemoryStore(nil)})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/health", "").Code)
}

// failingStore simulates an unreachable database
type failingStore struct{ *repository.MemoryStore }

var errDown = errors.New("connection refused")

func (failingStore) Retrieve(context.Context, model.ParsedQuery, int) ([]model.Listing, error) {
	return nil, errDown
}

func (failingStore) Ping(context.Context) error { return errDown }

func TestValidateBatch(t *testing.T) {
	vec := []float32{0, 1}
	tests := []struct {
		name    string
		items   []model.EmbeddingItem
		wantErr string
	}{
		{name: "ok", items: []model.EmbeddingItem{{ListingID: 1, Embedding: vec}, {ListingID: 2, Embedding: vec}}},
		{name: "empty", items: nil, wantErr: "no embeddings"},
		{name: "bad id", items: []model.EmbeddingItem{{ListingID: 0, Embedding: vec}}, wantErr: "invalid listing_id"},
		{name: "duplicate", items: []model.EmbeddingItem{{ListingID: 3, Embedding: vec}, {ListingID: 3, Embedding: vec}}, wantErr: "duplicate listing_id 3 at index 1"},
		{name: "dimension", items: []model.EmbeddingItem{{ListingID: 1, Embedding: []float32{1}}}, wantErr: "got 1, expected 2"},
		{name: "too many", items: make([]model.EmbeddingItem, maxEmbeddingBatch+1), wantErr: "exceeds limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBatch(tt.items, 2)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
