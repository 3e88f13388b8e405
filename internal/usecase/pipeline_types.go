package usecase

import "time"

// Query encapsulates one answer or search request. Immutable once issued.
type Query struct {
	Text        string
	UserID      string
	DocumentIDs []string
	TopK        int
}

// AnalyzedQuery is the (possibly unchanged) query text plus an optional
// hypothetical document generated to improve retrieval recall on vague
// queries. Serialized as-is into the query-analysis cache.
type AnalyzedQuery struct {
	Query                string `json:"query"`
	HypotheticalDocument string `json:"hypothetical_document,omitempty"`
	Expanded             bool   `json:"expanded"`
	// ExpansionFailed marks an expansion that was warranted but could
	// not be generated, so retrieval can report the fallback method.
	ExpansionFailed bool `json:"expansion_failed,omitempty"`
}

// RetrievalCandidate is one chunk surfaced by the similarity scan.
type RetrievalCandidate struct {
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RankedResult is a retrieval candidate with its rerank score. When
// reranking is skipped or fails, RerankScore carries the similarity
// score so the list stays ordered by one defining score either way.
type RankedResult struct {
	RetrievalCandidate
	RerankScore float64 `json:"rerank_score"`
}

// CompressedContext is the context string fed to the generator plus
// the token-count estimates recorded for diagnostics.
type CompressedContext struct {
	Text             string
	OriginalTokens   int
	CompressedTokens int
}

// Response is the final answer returned by the pipeline. The Metadata
// map is an open diagnostic accumulator (stage timings, cache-hit
// flags, retrieval method, token counts); it is never validated
// against a schema.
type Response struct {
	Answer   string         `json:"answer"`
	Sources  []RankedResult `json:"sources"`
	Elapsed  time.Duration  `json:"elapsed"`
	CacheHit bool           `json:"cache_hit"`
	Metadata map[string]any `json:"metadata"`
}

// Retrieval methods recorded in metadata under "retrieval_method".
const (
	RetrievalMethodStandard         = "standard"
	RetrievalMethodHypothetical     = "hypothetical_document"
	RetrievalMethodStandardFallback = "standard_fallback"
)

// Fixed user-facing messages. The pipeline degrades to these instead of
// surfacing errors.
const (
	NoRelevantDocumentsMessage = "No relevant documents were found in your archive for this question."
	AnswerFailedMessage        = "Sorry, I could not generate an answer right now. Please try again in a moment."
)
