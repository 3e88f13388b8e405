package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/domain"
)

// PipelineConfig holds the orchestrator-level settings.
type PipelineConfig struct {
	// DefaultTopK is used when a query does not request a count.
	DefaultTopK int
	// MinSimilarity is the retrieval threshold for Answer requests;
	// Search takes its own.
	MinSimilarity float64
	// GenerateTimeout bounds the synthesis call.
	GenerateTimeout time.Duration
	// MaxAnswerTokens bounds the generated answer.
	MaxAnswerTokens int
	// ExpandSearchQueries applies hypothetical-document expansion to
	// retrieval-only Search requests too.
	ExpandSearchQueries bool
}

// DefaultPipelineConfig returns the documented policy defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		DefaultTopK:     5,
		MinSimilarity:   0.7,
		GenerateTimeout: 60 * time.Second,
		MaxAnswerTokens: 768,
	}
}

// AnswerPipeline sequences the five stages — analyze, retrieve, rerank,
// compress, synthesize — threading a shared metadata map through them.
// Each stage owns its fallback; the pipeline's outer boundary converts
// anything unexpected into a degraded Response, so callers never see an
// error or a panic.
type AnswerPipeline struct {
	analyzer   *QueryAnalyzer
	retriever  *Retriever
	rerank     *RerankStage
	compressor *Compressor
	prompts    *PromptBuilder
	llm        domain.LLMClient
	config     PipelineConfig
	logger     *slog.Logger
}

// NewAnswerPipeline wires together the pipeline stages.
func NewAnswerPipeline(
	analyzer *QueryAnalyzer,
	retriever *Retriever,
	rerank *RerankStage,
	compressor *Compressor,
	prompts *PromptBuilder,
	llm domain.LLMClient,
	config PipelineConfig,
	logger *slog.Logger,
) *AnswerPipeline {
	return &AnswerPipeline{
		analyzer:   analyzer,
		retriever:  retriever,
		rerank:     rerank,
		compressor: compressor,
		prompts:    prompts,
		llm:        llm,
		config:     config,
		logger:     logger,
	}
}

// Answer runs the full pipeline and always returns a well-formed
// Response, degraded at worst.
func (p *AnswerPipeline) Answer(ctx context.Context, q Query) (resp *Response) {
	start := time.Now()
	meta := map[string]any{
		"request_id": uuid.NewString(),
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline_panic",
				slog.Any("panic", r),
				slog.String("query", truncate(q.Text, 100)))
			resp = &Response{
				Answer:   AnswerFailedMessage,
				Sources:  []RankedResult{},
				Elapsed:  time.Since(start),
				Metadata: meta,
			}
		}
	}()

	if q.TopK <= 0 {
		q.TopK = p.config.DefaultTopK
	}
	if strings.TrimSpace(q.Text) == "" {
		meta["failure"] = "empty query"
		return &Response{
			Answer:   AnswerFailedMessage,
			Sources:  []RankedResult{},
			Elapsed:  time.Since(start),
			Metadata: meta,
		}
	}

	ranked, compressed := p.prepareContext(ctx, q, meta)

	answer := p.synthesize(ctx, q.Text, compressed.Text, len(ranked), meta)

	analysisHit, _ := meta["analysis_cache_hit"].(bool)
	retrievalHit, _ := meta["retrieval_cache_hit"].(bool)

	p.logger.Info("answer_completed",
		slog.String("request_id", meta["request_id"].(string)),
		slog.Int("source_count", len(ranked)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &Response{
		Answer:   answer,
		Sources:  ranked,
		Elapsed:  time.Since(start),
		CacheHit: analysisHit && retrievalHit,
		Metadata: meta,
	}
}

// prepareContext runs the analyze, retrieve, rerank, and compress
// stages, recording per-stage timings in meta.
func (p *AnswerPipeline) prepareContext(ctx context.Context, q Query, meta map[string]any) ([]RankedResult, CompressedContext) {
	stageStart := time.Now()
	analyzed, analysisHit := p.analyzer.Analyze(ctx, q.Text)
	meta["analysis_cache_hit"] = analysisHit
	meta["analysis_ms"] = time.Since(stageStart).Milliseconds()

	stageStart = time.Now()
	candidates := p.retriever.Retrieve(ctx, analyzed, q, p.config.MinSimilarity, meta)
	meta["retrieval_ms"] = time.Since(stageStart).Milliseconds()
	meta["candidate_count"] = len(candidates)

	// Re-ranking runs on the original query text: the hypothetical
	// document helps recall, not joint precision.
	stageStart = time.Now()
	ranked := p.rerank.Rank(ctx, q.Text, q.UserID, candidates, q.TopK, meta)
	meta["rerank_ms"] = time.Since(stageStart).Milliseconds()

	stageStart = time.Now()
	compressed := p.compressor.Compress(q.Text, ranked)
	meta["compression_enabled"] = p.compressor.config.Enabled
	meta["compression_ms"] = time.Since(stageStart).Milliseconds()
	meta["original_tokens"] = compressed.OriginalTokens
	meta["compressed_tokens"] = compressed.CompressedTokens

	return ranked, compressed
}

// synthesize produces the grounded answer for the prepared context,
// substituting the fixed messages on empty context or provider failure.
func (p *AnswerPipeline) synthesize(ctx context.Context, query, contextText string, sourceCount int, meta map[string]any) string {
	if strings.TrimSpace(contextText) == "" {
		return NoRelevantDocumentsMessage
	}
	if p.llm == nil {
		meta["synthesis_error"] = domain.ErrProviderUnavailable.Error()
		return AnswerFailedMessage
	}

	prompt := p.prompts.Build(query, contextText)

	callCtx, cancel := context.WithTimeout(ctx, p.config.GenerateTimeout)
	defer cancel()

	stageStart := time.Now()
	resp, err := p.llm.Generate(callCtx, prompt, p.config.MaxAnswerTokens)
	meta["synthesis_ms"] = time.Since(stageStart).Milliseconds()
	if err != nil {
		p.logger.Warn("synthesis_failed",
			slog.String("error", err.Error()))
		meta["synthesis_error"] = err.Error()
		return AnswerFailedMessage
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		meta["synthesis_error"] = "empty generation"
		return AnswerFailedMessage
	}

	meta["cited_documents"] = ExtractCitations(answer, sourceCount)
	return answer
}

// Search is the retrieval-only path: ranked source chunks, no narrative
// answer. Expansion is applied only when configured for search.
func (p *AnswerPipeline) Search(ctx context.Context, q Query, minSimilarity float64) ([]RetrievalCandidate, map[string]any) {
	meta := map[string]any{
		"request_id": uuid.NewString(),
	}
	if q.TopK <= 0 {
		q.TopK = p.config.DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = p.config.MinSimilarity
	}

	analyzed := AnalyzedQuery{Query: q.Text}
	if p.config.ExpandSearchQueries {
		var hit bool
		analyzed, hit = p.analyzer.Analyze(ctx, q.Text)
		meta["analysis_cache_hit"] = hit
	}

	candidates := p.retriever.Retrieve(ctx, analyzed, q, minSimilarity, meta)
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	return candidates, meta
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
