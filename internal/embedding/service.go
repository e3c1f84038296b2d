package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// Dimension is the output size of the embedding model. Every stored vector
// has exactly this many components.
const Dimension = 1536

// maxInputChars is the ceiling applied before calling the model. Longer text
// is truncated, so callers needing full-document coverage must chunk first.
const maxInputChars = 8000

// Failure wraps an upstream embedding error. The service never retries;
// retry policy belongs to the caller.
type Failure struct {
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("embedding failed: %v", f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Service wraps the external embedding model.
type Service struct {
	embedder embedding.Embedder
	model    string
	cache    *RedisCache // optional

	mu   sync.Mutex
	dims int // expected vector size; locked to the first result when 0
}

// Config embedding provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string // e.g. "text-embedding-ada-002"
}

// NewService creates the embedding service on top of Eino.
func NewService(cfg *Config, cache *RedisCache) (*Service, error) {
	embedder, err := openai.NewEmbedder(context.Background(), &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Service{
		embedder: embedder,
		model:    cfg.Model,
		cache:    cache,
		dims:     Dimension,
	}, nil
}

// NewServiceWithEmbedder wires an existing embedder, used by tests and by
// callers that construct the Eino component themselves.
func NewServiceWithEmbedder(embedder embedding.Embedder, model string, cache *RedisCache) *Service {
	return &Service{
		embedder: embedder,
		model:    model,
		cache:    cache,
	}
}

// Embed returns the vector for one text.
//
// Input is normalized first: newlines collapse to spaces and anything past
// maxInputChars is silently dropped, so the call stays under the upstream
// token limit deterministically. The truncation is lossy.
func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	normalized := normalize(text)

	if s.cache != nil {
		cacheKey := s.cacheKey(normalized)
		cached, err := s.cache.GetEmbedding(ctx, cacheKey)
		if err == nil && cached != nil {
			logx.Debug("Embedding cache hit: key=%s", cacheKey[:16])
			return cached, nil
		}
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{normalized})
	if err != nil {
		return nil, &Failure{Err: err}
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, &Failure{Err: fmt.Errorf("empty embedding result")}
	}

	result := vectors[0]
	if err := s.checkDimension(result); err != nil {
		return nil, &Failure{Err: err}
	}

	if s.cache != nil {
		cacheKey := s.cacheKey(normalized)
		if err := s.cache.SetEmbedding(ctx, cacheKey, result); err != nil {
			logx.Warn("Failed to cache embedding: %v", err)
		}
	}

	return result, nil
}

// EmbedBatch returns vectors for several texts in one upstream call.
// No batching guarantee is assumed from the model beyond index alignment.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	normalized := make([]string, len(texts))
	for i, text := range texts {
		normalized[i] = normalize(text)
	}

	vectors, err := s.embedder.EmbedStrings(ctx, normalized)
	if err != nil {
		return nil, &Failure{Err: err}
	}

	if len(vectors) != len(texts) {
		return nil, &Failure{Err: fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors))}
	}

	for _, vector := range vectors {
		if err := s.checkDimension(vector); err != nil {
			return nil, &Failure{Err: err}
		}
	}

	return vectors, nil
}

// checkDimension enforces that every vector the model returns has the same
// size. NewService pins the size to Dimension; otherwise the first result
// locks it in.
func (s *Service) checkDimension(vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 {
		s.dims = len(vector)
		return nil
	}
	if len(vector) != s.dims {
		return fmt.Errorf("expected %d-dimensional embedding, got %d", s.dims, len(vector))
	}
	return nil
}

// GetModel returns the model identifier.
func (s *Service) GetModel() string {
	return s.model
}

// cacheKey derives the cache key from model and text.
func (s *Service) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(s.model + ":" + text))
	return fmt.Sprintf("emb:%x", hash[:16])
}

// normalize collapses newlines to spaces and truncates to maxInputChars,
// backing off to a rune boundary so no partial UTF-8 sequence is sent upstream.
func normalize(text string) string {
	cleaned := strings.ReplaceAll(text, "\n", " ")
	if len(cleaned) > maxInputChars {
		cut := maxInputChars
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}
	return cleaned
}

// VectorToJSON encodes a vector for storage.
func VectorToJSON(vector []float64) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSONToVector decodes a stored vector.
func JSONToVector(jsonStr string) ([]float64, error) {
	if jsonStr == "" {
		return nil, nil
	}
	var vector []float64
	err := json.Unmarshal([]byte(jsonStr), &vector)
	if err != nil {
		return nil, err
	}
	return vector, nil
}
