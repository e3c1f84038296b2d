package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"gorm.io/gorm"
)

const (
	defaultTopK             = 5
	defaultMaxContextTokens = 4000
)

// Embedder is the embedding dependency (narrow interface, avoids a package cycle).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	GetModel() string
}

// CorpusSearcher finds chunks of one corpus similar to a query vector.
type CorpusSearcher interface {
	Name() string
	Search(ctx context.Context, queryVector []float64, opts Options) ([]RankedChunk, error)
}

// Engine runs cross-corpus similarity retrieval.
type Engine struct {
	embedder  Embedder
	searchers []CorpusSearcher
}

// NewEngine creates a retrieval engine over the three standard corpora.
func NewEngine(db *gorm.DB, embedder Embedder) *Engine {
	return &Engine{
		embedder: embedder,
		searchers: []CorpusSearcher{
			&documentSearcher{db: db},
			&meetingSearcher{db: db},
			&tabularSearcher{db: db},
		},
	}
}

// NewEngineWithSearchers creates an engine with explicit searchers.
func NewEngineWithSearchers(embedder Embedder, searchers ...CorpusSearcher) *Engine {
	return &Engine{
		embedder:  embedder,
		searchers: searchers,
	}
}

// Retrieve embeds the query, ranks chunks from every corpus, and assembles a
// token-bounded context. An embedding failure fails the whole retrieval; the
// caller is expected to proceed without grounding rather than block the chat.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	if opts.PartnerID == "" {
		return nil, fmt.Errorf("partner id is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = defaultMaxContextTokens
	}

	queryVector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	candidates := e.searchAll(ctx, queryVector, opts)

	// Rank by similarity descending; on a tie the fresher chunk wins.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].LastUpdated.After(candidates[j].LastUpdated)
	})

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	included, contextText := assembleContext(candidates, opts.MaxContextTokens)

	logx.Info("Retrieval completed: candidates=%d, included=%d, context_tokens≈%d",
		len(candidates), len(included), len(contextText)/4)

	return &Result{
		Chunks:  included,
		Context: contextText,
	}, nil
}

// searchAll queries every corpus concurrently. A failing corpus degrades
// gracefully: its contribution is dropped and the rest proceed.
func (e *Engine) searchAll(ctx context.Context, queryVector []float64, opts Options) []RankedChunk {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []RankedChunk
	)

	for _, searcher := range e.searchers {
		wg.Add(1)
		go func(s CorpusSearcher) {
			defer wg.Done()

			chunks, err := s.Search(ctx, queryVector, opts)
			if err != nil {
				logx.Warn("Corpus %s search failed, dropping its results: %v", s.Name(), err)
				return
			}

			mu.Lock()
			candidates = append(candidates, chunks...)
			mu.Unlock()
		}(searcher)
	}

	wg.Wait()
	return candidates
}

// assembleContext concatenates candidates in rank order as "[name]: content"
// joined by blank lines, stopping before a candidate would push the
// approximate token count (content length / 4) over the budget. The first
// candidate is always included so relevant material never yields an empty
// context, even when it alone exceeds the budget.
func assembleContext(candidates []RankedChunk, maxContextTokens int) ([]RankedChunk, string) {
	var (
		included []RankedChunk
		parts    []string
		tokens   int
	)

	for i, chunk := range candidates {
		chunkTokens := len(chunk.Content) / 4
		if i > 0 && tokens+chunkTokens > maxContextTokens {
			break
		}

		included = append(included, chunk)
		parts = append(parts, fmt.Sprintf("[%s]: %s", chunk.SourceName, chunk.Content))
		tokens += chunkTokens
	}

	return included, strings.Join(parts, "\n\n")
}

// cosineSimilarity computes the cosine similarity of two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		logx.Warn("Vector dimension mismatch: %d vs %d", len(a), len(b))
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
