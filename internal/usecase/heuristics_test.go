package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpansionConfidence(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		expands bool
	}{
		{"vague how question", "how does the backup system work", true},
		{"short underspecified", "insurance coverage", true},
		{"exploratory", "tell me about my pension documents", true},
		{"precise date lookup", "when was invoice 1234 issued", false},
		{"quoted phrase", `find "annual report 2023"`, false},
		{"who lookup", "who is the account manager", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confidence := expansionConfidence(tt.query)
			if tt.expands {
				assert.GreaterOrEqual(t, confidence, 0.6, "query %q should qualify for expansion", tt.query)
			} else {
				assert.Less(t, confidence, 0.6, "query %q should retrieve as-is", tt.query)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs score zero instead of erroring.
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestQueryHashNormalization(t *testing.T) {
	assert.Equal(t, queryHash("Tax  Deadline"), queryHash("tax deadline"))
	assert.NotEqual(t, queryHash("tax deadline"), queryHash("tax deadlines"))
	assert.Len(t, queryHash("anything"), 32)
}

func TestScopedCacheKeyIsolatesUsers(t *testing.T) {
	assert.NotEqual(t, scopedCacheKey("q", "user-1"), scopedCacheKey("q", "user-2"))
	assert.Equal(t, scopedCacheKey("Q", "user-1"), scopedCacheKey("q", "user-1"))
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First sentence. Second one!\nThird without terminator")
	assert.Equal(t, []string{"First sentence.", "Second one!", "Third without terminator"}, got)
	assert.Empty(t, splitSentences(""))
}

func TestExtractCitations(t *testing.T) {
	answer := "See [Document 2] and [Document 1]; also [Document 2] again and [Document 9]."
	assert.Equal(t, []int{1, 2}, ExtractCitations(answer, 3))
	assert.Empty(t, ExtractCitations("no citations here", 3))
}
