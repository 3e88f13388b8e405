package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"docvault/internal/tokenizer"
)

// CompressorConfig holds the contextual-compression settings.
type CompressorConfig struct {
	// Enabled controls whether compression is applied. When off the
	// full chunk texts are concatenated.
	Enabled bool
	// TokenBudget is the target size of the compressed context across
	// all chunks combined.
	TokenBudget int
}

// DefaultCompressorConfig returns the documented policy defaults.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Enabled:     true,
		TokenBudget: 1000,
	}
}

// Compressor extracts the sentences most relevant to the query from
// each ranked chunk until the token budget is met. Failure falls back
// to the uncompressed concatenation; the request is never aborted here.
type Compressor struct {
	counter tokenizer.Counter
	config  CompressorConfig
	logger  *slog.Logger
}

// NewCompressor wires the compression stage.
func NewCompressor(counter tokenizer.Counter, config CompressorConfig, logger *slog.Logger) *Compressor {
	return &Compressor{
		counter: counter,
		config:  config,
		logger:  logger,
	}
}

// Compress builds the context string for the given ranked chunks and
// records original/compressed token estimates.
func (c *Compressor) Compress(query string, results []RankedResult) CompressedContext {
	uncompressed := uncompressedContext(results)
	originalTokens := c.counter.Count(uncompressed)

	if !c.config.Enabled || len(results) == 0 {
		return CompressedContext{
			Text:             uncompressed,
			OriginalTokens:   originalTokens,
			CompressedTokens: originalTokens,
		}
	}

	compressed, err := c.compress(query, results)
	if err != nil {
		c.logger.Warn("compression_failed_using_full_context",
			slog.String("error", err.Error()))
		return CompressedContext{
			Text:             uncompressed,
			OriginalTokens:   originalTokens,
			CompressedTokens: originalTokens,
		}
	}

	compressedTokens := c.counter.Count(compressed)
	if compressedTokens > originalTokens {
		// Separators can outweigh the savings on tiny inputs.
		return CompressedContext{
			Text:             uncompressed,
			OriginalTokens:   originalTokens,
			CompressedTokens: originalTokens,
		}
	}

	c.logger.Info("compression_completed",
		slog.Int("original_tokens", originalTokens),
		slog.Int("compressed_tokens", compressedTokens))

	return CompressedContext{
		Text:             compressed,
		OriginalTokens:   originalTokens,
		CompressedTokens: compressedTokens,
	}
}

// compress keeps, per chunk, the sentences scoring highest against the
// query until the shared budget runs out. Retained sentences keep their
// original order within each chunk.
func (c *Compressor) compress(query string, results []RankedResult) (string, error) {
	queryTerms := contentTerms(query)
	budget := c.config.TokenBudget
	if budget <= 0 {
		budget = DefaultCompressorConfig().TokenBudget
	}

	var sb strings.Builder
	remaining := budget
	kept := 0

	for i, result := range results {
		if remaining <= 0 {
			break
		}
		sentences := splitSentences(result.Content)
		if len(sentences) == 0 {
			continue
		}

		selected := selectSentences(sentences, queryTerms, c.counter, &remaining)
		if len(selected) == 0 {
			continue
		}

		if kept > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Document %d: %s\n", i+1, result.FileName)
		sb.WriteString(strings.Join(selected, " "))
		kept++
	}

	if kept == 0 {
		return "", fmt.Errorf("no sentences retained within budget of %d tokens", budget)
	}
	return sb.String(), nil
}

// selectSentences greedily takes the best-scoring sentences that still
// fit the remaining budget, then restores their original order.
func selectSentences(sentences []string, queryTerms map[string]struct{}, counter tokenizer.Counter, remaining *int) []string {
	type scored struct {
		index int
		score float64
	}

	frequencies := termFrequencies(sentences)
	ranking := make([]scored, len(sentences))
	for i, sentence := range sentences {
		ranking[i] = scored{index: i, score: sentenceScore(sentence, queryTerms, frequencies)}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].score > ranking[j].score
	})

	picked := make([]int, 0, len(sentences))
	for _, candidate := range ranking {
		cost := counter.Count(sentences[candidate.index])
		if cost > *remaining {
			continue
		}
		*remaining -= cost
		picked = append(picked, candidate.index)
	}
	sort.Ints(picked)

	selected := make([]string, 0, len(picked))
	for _, index := range picked {
		selected = append(selected, strings.TrimSpace(sentences[index]))
	}
	return selected
}

// sentenceScore combines query-term overlap with normalized term
// frequency, damped by sentence length to avoid favoring long sentences.
func sentenceScore(sentence string, queryTerms map[string]struct{}, frequencies map[string]float64) float64 {
	terms := tokenize(sentence)
	if len(terms) == 0 {
		return 0
	}
	score := 0.0
	for _, term := range terms {
		if _, ok := queryTerms[term]; ok {
			score += 2
		}
		score += frequencies[term]
	}
	return score / math.Sqrt(float64(len(terms)))
}

// termFrequencies computes stopword-filtered term frequencies across
// all sentences, normalized to [0, 1].
func termFrequencies(sentences []string) map[string]float64 {
	frequencies := map[string]float64{}
	for _, sentence := range sentences {
		for _, term := range tokenize(sentence) {
			if _, ok := stopwords[term]; ok {
				continue
			}
			frequencies[term]++
		}
	}
	max := 0.0
	for _, f := range frequencies {
		if f > max {
			max = f
		}
	}
	if max > 0 {
		for term, f := range frequencies {
			frequencies[term] = f / max
		}
	}
	return frequencies
}

// uncompressedContext is the fallback concatenation of full chunk texts.
func uncompressedContext(results []RankedResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, result := range results {
		parts[i] = fmt.Sprintf("Document %d: %s\n%s", i+1, result.FileName, result.Content)
	}
	return strings.Join(parts, "\n\n")
}

func contentTerms(text string) map[string]struct{} {
	terms := map[string]struct{}{}
	for _, term := range tokenize(text) {
		if _, ok := stopwords[term]; ok {
			continue
		}
		terms[term] = struct{}{}
	}
	return terms
}

var (
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]?`)
	tokenPattern    = regexp.MustCompile(`\pL+`)
)

func splitSentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else",
		"for", "to", "of", "in", "on", "at", "by", "with", "as", "is",
		"are", "was", "were", "be", "been", "being", "it", "this",
		"that", "these", "those", "from", "about", "into", "through",
		"during", "before", "after", "between", "can", "will", "just",
		"what", "which", "who", "how", "why", "when", "where", "do",
		"does", "did", "have", "has", "had", "not", "no", "so", "such",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
