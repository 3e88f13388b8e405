package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
)

func TestRerankerClient_Rerank_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rerank", r.URL.Path)

		var req RerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test query", req.Query)
		assert.Len(t, req.Candidates, 3)
		assert.Equal(t, "bge-reranker-v2-m3", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RerankResponse{
			Results: []RerankResponseResult{
				{Index: 1, Score: 0.95},
				{Index: 0, Score: 0.85},
				{Index: 2, Score: 0.75},
			},
			Model: "bge-reranker-v2-m3",
		})
	}))
	defer server.Close()

	client := NewRerankerClient(server.URL, "bge-reranker-v2-m3", 30*time.Second, testLogger())

	candidates := []domain.RerankCandidate{
		{ID: "chunk-1", Content: "Content about insurance", Score: 0.8},
		{ID: "chunk-2", Content: "Content about claims", Score: 0.7},
		{ID: "chunk-3", Content: "Content about renewals", Score: 0.6},
	}

	results, err := client.Rerank(context.Background(), "test query", candidates)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "chunk-2", results[0].ID)
	assert.Equal(t, 0.95, results[0].Score)
	assert.Equal(t, "chunk-1", results[1].ID)
	assert.Equal(t, "chunk-3", results[2].ID)
}

func TestRerankerClient_Rerank_EmptyCandidates(t *testing.T) {
	client := NewRerankerClient("http://localhost:8001", "bge-reranker-v2-m3", 30*time.Second, testLogger())

	results, err := client.Rerank(context.Background(), "test query", []domain.RerankCandidate{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankerClient_Rerank_InvalidIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(RerankResponse{
			Results: []RerankResponseResult{{Index: 5, Score: 0.9}},
		})
	}))
	defer server.Close()

	client := NewRerankerClient(server.URL, "bge-reranker-v2-m3", 30*time.Second, testLogger())

	_, err := client.Rerank(context.Background(), "q", []domain.RerankCandidate{{ID: "chunk-1", Content: "c"}})
	assert.Error(t, err)
}

func TestRerankerClient_Rerank_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRerankerClient(server.URL, "bge-reranker-v2-m3", 30*time.Second, testLogger())

	_, err := client.Rerank(context.Background(), "q", []domain.RerankCandidate{{ID: "chunk-1", Content: "c"}})
	assert.Error(t, err)
}
