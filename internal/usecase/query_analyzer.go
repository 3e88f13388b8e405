package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"docvault/internal/domain"
)

// QueryAnalyzerConfig holds the hypothetical-document expansion settings.
type QueryAnalyzerConfig struct {
	// Enabled controls whether expansion is ever attempted.
	Enabled bool
	// MinConfidence is the expansion-benefit threshold; queries scoring
	// below it are retrieved as-is.
	MinConfidence float64
	// MaxTokens bounds the generated hypothetical document.
	MaxTokens int
	// CallTimeout bounds the generation call.
	CallTimeout time.Duration
	// CacheTTL bounds how long an analysis is reused.
	CacheTTL time.Duration
}

// DefaultQueryAnalyzerConfig returns the documented policy defaults.
func DefaultQueryAnalyzerConfig() QueryAnalyzerConfig {
	return QueryAnalyzerConfig{
		Enabled:       true,
		MinConfidence: 0.6,
		MaxTokens:     200,
		CallTimeout:   20 * time.Second,
		CacheTTL:      30 * time.Minute,
	}
}

// QueryAnalyzer decides whether a hypothetical answer document would
// improve retrieval for a query and, if so, generates one. The stage
// never fails past its boundary: any trouble degrades to "no expansion".
type QueryAnalyzer struct {
	llm    domain.LLMClient
	cache  domain.Cache
	config QueryAnalyzerConfig
	logger *slog.Logger
}

// NewQueryAnalyzer wires the analyzer stage.
func NewQueryAnalyzer(llm domain.LLMClient, cache domain.Cache, config QueryAnalyzerConfig, logger *slog.Logger) *QueryAnalyzer {
	return &QueryAnalyzer{
		llm:    llm,
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// Analyze returns the analyzed query and whether it came from cache.
func (a *QueryAnalyzer) Analyze(ctx context.Context, query string) (AnalyzedQuery, bool) {
	plain := AnalyzedQuery{Query: query}

	if !a.config.Enabled || a.llm == nil {
		return plain, false
	}

	key := queryHash(query)
	if a.cache != nil {
		if raw, ok := a.cache.Get(ctx, domain.CacheNamespaceQueryAnalysis, key); ok {
			var cached AnalyzedQuery
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, true
			}
		}
	}

	confidence := expansionConfidence(query)
	if confidence < a.config.MinConfidence {
		a.logger.Debug("expansion_skipped",
			slog.Float64("confidence", confidence),
			slog.Float64("threshold", a.config.MinConfidence))
		a.store(ctx, key, plain)
		return plain, false
	}

	doc, err := a.generateHypotheticalDocument(ctx, query)
	if err != nil {
		a.logger.Warn("hypothetical_document_failed",
			slog.String("error", err.Error()))
		plain.ExpansionFailed = true
		return plain, false
	}

	analyzed := AnalyzedQuery{
		Query:                query,
		HypotheticalDocument: doc,
		Expanded:             true,
	}
	a.store(ctx, key, analyzed)

	a.logger.Info("query_expanded",
		slog.Float64("confidence", confidence),
		slog.Int("document_chars", len(doc)))

	return analyzed, false
}

func (a *QueryAnalyzer) store(ctx context.Context, key string, analyzed AnalyzedQuery) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(analyzed)
	if err != nil {
		return
	}
	a.cache.Set(ctx, domain.CacheNamespaceQueryAnalysis, key, raw, a.config.CacheTTL)
}

func (a *QueryAnalyzer) generateHypotheticalDocument(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf(`Write a short passage that would plausibly appear in a document answering the following question.
Write as if quoting a real archived document: factual tone, no preamble, no mention of the question itself.

Question: %s

Passage:`, query)

	callCtx, cancel := context.WithTimeout(ctx, a.config.CallTimeout)
	defer cancel()

	resp, err := a.llm.Generate(callCtx, prompt, a.config.MaxTokens)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("empty hypothetical document")
	}
	return text, nil
}

// Vague, exploratory phrasings benefit from expansion; precise factual
// lookups retrieve better on their own terms.
var (
	vagueMarkers = []string{
		"how ", "why ", "explain", "overview", "tell me about",
		"what should", "what can", "help me", "best way", "compare",
		"anything about", "summarize",
	}
	preciseMarkers = []string{
		"who is", "when was", "when did", "where is", "define",
		"what is the exact", "how many", "how much",
	}
)

// expansionConfidence scores how likely hypothetical-document expansion
// is to improve retrieval for the query, in [0, 1].
func expansionConfidence(query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	confidence := 0.5

	for _, marker := range vagueMarkers {
		if strings.Contains(q, marker) {
			confidence += 0.3
			break
		}
	}
	for _, marker := range preciseMarkers {
		if strings.Contains(q, marker) {
			confidence -= 0.3
			break
		}
	}

	// Quoted phrases and numbers signal a precise lookup.
	if strings.ContainsAny(q, `"'`) {
		confidence -= 0.2
	}
	if strings.IndexFunc(q, unicode.IsDigit) >= 0 {
		confidence -= 0.2
	}

	// Very short queries are usually underspecified.
	if len(strings.Fields(q)) <= 4 {
		confidence += 0.1
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
