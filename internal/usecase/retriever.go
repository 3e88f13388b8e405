package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"docvault/internal/domain"
)

// RetrieverConfig holds the similarity-retrieval settings.
type RetrieverConfig struct {
	// OverfetchMultiplier sizes the candidate pool handed to the
	// re-ranker: topK times this value.
	OverfetchMultiplier int
	// MinSimilarity discards candidates scoring below it.
	MinSimilarity float64
	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration
	// CacheTTL bounds how long a candidate list is reused.
	CacheTTL time.Duration
}

// DefaultRetrieverConfig returns the documented policy defaults.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		OverfetchMultiplier: 3,
		MinSimilarity:       0.7,
		EmbedTimeout:        15 * time.Second,
		CacheTTL:            10 * time.Minute,
	}
}

// Retriever embeds the effective query, scans the owner's chunks by
// cosine similarity, and returns an over-fetched candidate list. On
// total failure it returns an empty list rather than an error.
type Retriever struct {
	chunks  domain.ChunkStore
	encoder domain.VectorEncoder
	cache   domain.Cache
	config  RetrieverConfig
	logger  *slog.Logger
}

// NewRetriever wires the retrieval stage.
func NewRetriever(chunks domain.ChunkStore, encoder domain.VectorEncoder, cache domain.Cache, config RetrieverConfig, logger *slog.Logger) *Retriever {
	return &Retriever{
		chunks:  chunks,
		encoder: encoder,
		cache:   cache,
		config:  config,
		logger:  logger,
	}
}

// cachedRetrieval is the serialized form of a retrieval stage output.
type cachedRetrieval struct {
	Method     string               `json:"method"`
	Candidates []RetrievalCandidate `json:"candidates"`
}

// Retrieve returns up to topK x overfetch candidates above minSimilarity,
// ordered by similarity descending, and records the retrieval method and
// cache-hit flag in meta.
func (r *Retriever) Retrieve(ctx context.Context, analyzed AnalyzedQuery, q Query, minSimilarity float64, meta map[string]any) []RetrievalCandidate {
	limit := q.TopK * r.config.OverfetchMultiplier
	if limit <= 0 {
		limit = q.TopK
	}

	key := retrievalCacheKey(q, minSimilarity)
	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, domain.CacheNamespaceRetrieval, key); ok {
			var cached cachedRetrieval
			if err := json.Unmarshal(raw, &cached); err == nil {
				meta["retrieval_cache_hit"] = true
				meta["retrieval_method"] = cached.Method
				if len(cached.Candidates) > limit {
					return cached.Candidates[:limit]
				}
				return cached.Candidates
			}
		}
	}
	meta["retrieval_cache_hit"] = false

	vector, method, err := r.embedEffectiveQuery(ctx, analyzed)
	if err != nil {
		r.logger.Warn("retrieval_embedding_failed",
			slog.String("error", err.Error()))
		meta["retrieval_method"] = method
		return []RetrievalCandidate{}
	}
	meta["retrieval_method"] = method

	candidates, err := r.SearchByVector(ctx, vector, q.UserID, q.DocumentIDs, limit, minSimilarity)
	if err != nil {
		r.logger.Warn("retrieval_failed",
			slog.String("user_id", q.UserID),
			slog.String("error", err.Error()))
		return []RetrievalCandidate{}
	}

	if r.cache != nil {
		if raw, err := json.Marshal(cachedRetrieval{Method: method, Candidates: candidates}); err == nil {
			r.cache.Set(ctx, domain.CacheNamespaceRetrieval, key, raw, r.config.CacheTTL)
		}
	}

	r.logger.Info("retrieval_completed",
		slog.String("method", method),
		slog.Int("candidate_count", len(candidates)),
		slog.Int("limit", limit))

	return candidates
}

// embedEffectiveQuery chooses the embedding source: the hypothetical
// document when present and embeddable, else the query text. Both are
// embedded in parallel so the fallback vector is already in hand when
// the hypothetical path fails.
func (r *Retriever) embedEffectiveQuery(ctx context.Context, analyzed AnalyzedQuery) ([]float32, string, error) {
	if r.encoder == nil {
		return nil, RetrievalMethodStandard, domain.ErrProviderUnavailable
	}

	if analyzed.HypotheticalDocument == "" {
		method := RetrievalMethodStandard
		if analyzed.ExpansionFailed {
			method = RetrievalMethodStandardFallback
		}
		vector, err := r.embed(ctx, analyzed.Query)
		return vector, method, err
	}

	var (
		hypoVector, plainVector []float32
		hypoErr, plainErr       error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hypoVector, hypoErr = r.embed(gctx, analyzed.HypotheticalDocument)
		return nil // non-fatal, the plain query covers it
	})
	g.Go(func() error {
		plainVector, plainErr = r.embed(gctx, analyzed.Query)
		return nil
	})
	_ = g.Wait()

	if hypoErr == nil {
		return hypoVector, RetrievalMethodHypothetical, nil
	}
	r.logger.Warn("hypothetical_embedding_failed",
		slog.String("error", hypoErr.Error()))
	return plainVector, RetrievalMethodStandardFallback, plainErr
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.config.EmbedTimeout)
	defer cancel()

	embeddings, err := r.encoder.Encode(callCtx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// SearchByVector is the lower-level search used once an embedding is
// already known: load the owner's chunks, score by cosine similarity,
// filter, sort descending, truncate to limit.
func (r *Retriever) SearchByVector(ctx context.Context, vector []float32, ownerID string, documentIDs []string, limit int, minSimilarity float64) ([]RetrievalCandidate, error) {
	chunks, err := r.chunks.ListOwnedChunks(ctx, ownerID, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("list owned chunks: %w", err)
	}

	candidates := make([]RetrievalCandidate, 0, len(chunks))
	for _, chunk := range chunks {
		embedding := chunk.EmbeddingFor(len(vector))
		if embedding == nil {
			continue
		}
		similarity := cosineSimilarity(vector, embedding)
		if similarity < minSimilarity {
			continue
		}
		candidates = append(candidates, RetrievalCandidate{
			DocumentID: chunk.DocumentID.String(),
			FileName:   chunk.FileName,
			ChunkIndex: chunk.Ordinal,
			Content:    chunk.Content,
			Similarity: similarity,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// cosineSimilarity returns the angular closeness of two vectors in
// [-1, 1]. Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
