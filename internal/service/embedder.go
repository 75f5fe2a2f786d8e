package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"rentsearch/internal/config"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder maps text to dense vectors
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// OpenAIEmbedder calls an OpenAI-compatible embedding endpoint
type OpenAIEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for the configured embedding model
func NewOpenAIEmbedder(cfg config.OpenAIConfig) (*OpenAIEmbedder, error) {
	if !cfg.Enabled {
		return nil, errors.New("OpenAI API is not enabled")
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.APIBase),
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &OpenAIEmbedder{
		embedder:   embedder,
		dimensions: cfg.EmbeddingDimensions,
		logger:     slog.Default().With("component", "openai-embedder"),
	}, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// EmbedText generates a vector embedding for a single text string
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in one batch
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

// DefaultHashDimensions is the vector size of the hashing embedder
const DefaultHashDimensions = 256

// HashEmbedder is a deterministic local embedder using feature hashing over
// the same tokens as keyword scoring. Vectors are L2-normalised.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder with the given vector size
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (h *HashEmbedder) Dimensions() int { return h.dimensions }

func (h *HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimensions)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[f.Sum32()%uint32(h.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (h *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = h.EmbedText(ctx, t)
	}
	return out, nil
}

// VectorCache stores embeddings by key
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// CachedEmbedder serves repeated texts from a VectorCache. Cache failures
// are logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	inner     Embedder
	cache     VectorCache
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedEmbedder wraps inner; namespace separates vectors of different models
func NewCachedEmbedder(inner Embedder, cache VectorCache, namespace string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner:     inner,
		cache:     cache,
		namespace: namespace,
		ttl:       ttl,
		logger:    slog.Default().With("component", "embedding-cache"),
	}
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		vec, ok, err := c.cache.Get(ctx, c.key(t))
		if err != nil {
			c.logger.Warn("embedding cache read failed", "err", err)
		}
		if ok && len(vec) == c.inner.Dimensions() {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		if err := c.cache.Set(ctx, c.key(missTexts[j]), vectors[j], c.ttl); err != nil {
			c.logger.Warn("embedding cache write failed", "err", err)
		}
	}

	c.logger.Debug("embedded texts", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.namespace + ":" + hex.EncodeToString(sum[:])
}
