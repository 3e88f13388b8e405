package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"docvault/internal/domain"
)

// RerankStageConfig holds the cross-encoder rescoring settings.
type RerankStageConfig struct {
	// Enabled controls whether rescoring is applied at all.
	Enabled bool
	// Timeout bounds the rerank call.
	Timeout time.Duration
	// CacheTTL bounds how long a reranked list is reused.
	CacheTTL time.Duration
}

// DefaultRerankStageConfig returns the documented policy defaults.
func DefaultRerankStageConfig() RerankStageConfig {
	return RerankStageConfig{
		Enabled:  true,
		Timeout:  30 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}

// RerankStage rescores the over-fetched candidate list with a joint
// query/document model and trims it to topK. Disabled, empty, or
// failing runs fall back to the first topK candidates in similarity
// order; the request is never aborted here.
type RerankStage struct {
	reranker domain.Reranker
	cache    domain.Cache
	config   RerankStageConfig
	logger   *slog.Logger
}

// NewRerankStage wires the re-ranking stage.
func NewRerankStage(reranker domain.Reranker, cache domain.Cache, config RerankStageConfig, logger *slog.Logger) *RerankStage {
	return &RerankStage{
		reranker: reranker,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// Rank returns at most topK results ordered by their defining score
// descending, recording rerank flags in meta.
func (s *RerankStage) Rank(ctx context.Context, query, userID string, candidates []RetrievalCandidate, topK int, meta map[string]any) []RankedResult {
	meta["reranking_enabled"] = s.config.Enabled && s.reranker != nil

	if !s.config.Enabled || s.reranker == nil || len(candidates) == 0 {
		return passthrough(candidates, topK)
	}

	key := scopedCacheKey(query, userID)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, domain.CacheNamespaceReranking, key); ok {
			var cached []RankedResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				meta["rerank_cache_hit"] = true
				meta["rerank_applied"] = true // only model-scored lists are cached
				if len(cached) > topK {
					return cached[:topK]
				}
				return cached
			}
		}
	}
	meta["rerank_cache_hit"] = false

	rerankCandidates := make([]domain.RerankCandidate, len(candidates))
	for i, c := range candidates {
		rerankCandidates[i] = domain.RerankCandidate{
			ID:      candidateID(c),
			Content: c.Content,
			Score:   c.Similarity,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	results, err := s.reranker.Rerank(callCtx, query, rerankCandidates)
	cancel()
	if err != nil {
		s.logger.Warn("reranking_failed_using_similarity_order",
			slog.String("error", err.Error()))
		meta["rerank_applied"] = false
		return passthrough(candidates, topK)
	}

	scores := make(map[string]float64, len(results))
	for _, res := range results {
		scores[res.ID] = res.Score
	}

	ranked := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		score, ok := scores[candidateID(c)]
		if !ok {
			// Candidates the model skipped keep their similarity score.
			score = c.Similarity
		}
		ranked[i] = RankedResult{RetrievalCandidate: c, RerankScore: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	meta["rerank_applied"] = true
	s.logger.Info("reranking_completed",
		slog.Int("candidate_count", len(candidates)),
		slog.Int("result_count", len(ranked)),
		slog.String("model", s.reranker.ModelName()))

	if s.cache != nil {
		if raw, err := json.Marshal(ranked); err == nil {
			s.cache.Set(ctx, domain.CacheNamespaceReranking, key, raw, s.config.CacheTTL)
		}
	}

	return ranked
}

// passthrough keeps the similarity ordering and mirrors the similarity
// score into the rerank score so the result list is still ordered by
// its defining score.
func passthrough(candidates []RetrievalCandidate, topK int) []RankedResult {
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	ranked := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedResult{RetrievalCandidate: c, RerankScore: c.Similarity}
	}
	return ranked
}

func candidateID(c RetrievalCandidate) string {
	return fmt.Sprintf("%s:%d", c.DocumentID, c.ChunkIndex)
}
