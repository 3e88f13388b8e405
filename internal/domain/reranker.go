package domain

import "context"

// RerankCandidate represents a retrieved chunk submitted for
// cross-encoder rescoring.
type RerankCandidate struct {
	// ID is the unique identifier for the chunk (used to map back results).
	ID string
	// Content is the text content to be scored against the query.
	Content string
	// Score is the initial retrieval score (for debugging/logging).
	Score float64
}

// RerankResult represents a rescored candidate.
type RerankResult struct {
	// ID matches the candidate ID for result mapping.
	ID string
	// Score is the cross-encoder relevance score.
	Score float64
}

// Reranker scores candidates jointly against the query text, which is
// slower than bi-encoder similarity but considerably more precise on a
// small pre-filtered set.
//
// If an error occurs, callers must fall back to the original
// similarity ordering.
type Reranker interface {
	// Rerank returns results sorted by score descending.
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
