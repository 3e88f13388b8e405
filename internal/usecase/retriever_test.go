package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
	"docvault/internal/usecase"
)

// queryVector is the reference embedding the fake encoder returns;
// chunk vectors are built against it with vectorWithCosine.
var queryVector = []float32{1, 0}

func threeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: []domain.DocumentChunk{
		chunkWithVector("taxes-2024.pdf", 0, "Tax filing deadline details.", vectorWithCosine(0.9)),
		chunkWithVector("taxes-2023.pdf", 1, "Prior year tax filing.", vectorWithCosine(0.85)),
		chunkWithVector("recipes.txt", 2, "Pancake recipe.", vectorWithCosine(0.4)),
	}}
}

func TestSearchByVector_ThresholdAndOrdering(t *testing.T) {
	store := threeChunkStore()
	r := usecase.NewRetriever(store, &fakeEncoder{vector: queryVector}, nil, usecase.DefaultRetrieverConfig(), testLogger())

	got, err := r.SearchByVector(context.Background(), queryVector, "user-1", nil, 2, 0.7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "taxes-2024.pdf", got[0].FileName)
	assert.Equal(t, "taxes-2023.pdf", got[1].FileName)
	assert.InDelta(t, 0.9, got[0].Similarity, 0.01)
	assert.InDelta(t, 0.85, got[1].Similarity, 0.01)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
}

func TestSearchByVector_SkipsIncompatibleEmbeddings(t *testing.T) {
	store := &fakeChunkStore{chunks: []domain.DocumentChunk{
		chunkWithVector("a.txt", 0, "compatible", vectorWithCosine(0.95)),
		// 3D embedding cannot be scored against a 2D query vector.
		chunkWithVector("b.txt", 0, "incompatible", []float32{1, 0, 0}),
	}}
	r := usecase.NewRetriever(store, &fakeEncoder{vector: queryVector}, nil, usecase.DefaultRetrieverConfig(), testLogger())

	got, err := r.SearchByVector(context.Background(), queryVector, "user-1", nil, 10, 0.7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.txt", got[0].FileName)
}

func TestRetrieve_OverfetchCap(t *testing.T) {
	store := &fakeChunkStore{}
	for i := 0; i < 20; i++ {
		store.chunks = append(store.chunks, chunkWithVector("bulk.pdf", i, "chunk", vectorWithCosine(0.95)))
	}
	r := usecase.NewRetriever(store, &fakeEncoder{vector: queryVector}, nil, usecase.DefaultRetrieverConfig(), testLogger())

	meta := map[string]any{}
	got := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: "q"}, usecase.Query{Text: "q", UserID: "user-1", TopK: 2}, 0.7, meta)

	assert.Len(t, got, 6) // topK x overfetch multiplier
	assert.Equal(t, usecase.RetrievalMethodStandard, meta["retrieval_method"])
}

func TestRetrieve_HypotheticalDocumentPreferred(t *testing.T) {
	enc := &fakeEncoder{vector: queryVector}
	r := usecase.NewRetriever(threeChunkStore(), enc, nil, usecase.DefaultRetrieverConfig(), testLogger())

	meta := map[string]any{}
	analyzed := usecase.AnalyzedQuery{Query: "q", HypotheticalDocument: "a plausible answer passage", Expanded: true}
	got := r.Retrieve(context.Background(), analyzed, usecase.Query{Text: "q", UserID: "user-1", TopK: 2}, 0.7, meta)

	assert.NotEmpty(t, got)
	assert.Equal(t, usecase.RetrievalMethodHypothetical, meta["retrieval_method"])
	require.Len(t, enc.encoded, 2) // hypothetical and plain query embed in parallel
	assert.Contains(t, enc.encoded, "a plausible answer passage")
	assert.Contains(t, enc.encoded, "q")
}

func TestRetrieve_FallsBackToPlainQueryEmbedding(t *testing.T) {
	enc := &fakeEncoder{vector: queryVector, failOn: "a plausible answer passage"}
	r := usecase.NewRetriever(threeChunkStore(), enc, nil, usecase.DefaultRetrieverConfig(), testLogger())

	meta := map[string]any{}
	analyzed := usecase.AnalyzedQuery{Query: "q", HypotheticalDocument: "a plausible answer passage", Expanded: true}
	got := r.Retrieve(context.Background(), analyzed, usecase.Query{Text: "q", UserID: "user-1", TopK: 2}, 0.7, meta)

	assert.NotEmpty(t, got)
	assert.Equal(t, usecase.RetrievalMethodStandardFallback, meta["retrieval_method"])
}

func TestRetrieve_EncoderFailureReturnsEmpty(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("encoder down")}
	r := usecase.NewRetriever(threeChunkStore(), enc, nil, usecase.DefaultRetrieverConfig(), testLogger())

	meta := map[string]any{}
	got := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: "q"}, usecase.Query{Text: "q", UserID: "user-1", TopK: 2}, 0.7, meta)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_StoreFailureReturnsEmpty(t *testing.T) {
	store := &fakeChunkStore{err: errors.New("db down")}
	r := usecase.NewRetriever(store, &fakeEncoder{vector: queryVector}, nil, usecase.DefaultRetrieverConfig(), testLogger())

	meta := map[string]any{}
	got := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: "q"}, usecase.Query{Text: "q", UserID: "user-1", TopK: 2}, 0.7, meta)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_CacheRoundTrip(t *testing.T) {
	enc := &fakeEncoder{vector: queryVector}
	cache := newFakeCache()
	r := usecase.NewRetriever(threeChunkStore(), enc, cache, usecase.DefaultRetrieverConfig(), testLogger())

	q := usecase.Query{Text: "what about my taxes", UserID: "user-1", TopK: 2}

	meta := map[string]any{}
	first := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: q.Text}, q, 0.7, meta)
	assert.Equal(t, false, meta["retrieval_cache_hit"])

	meta = map[string]any{}
	second := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: q.Text}, q, 0.7, meta)
	assert.Equal(t, true, meta["retrieval_cache_hit"])
	assert.Equal(t, usecase.RetrievalMethodStandard, meta["retrieval_method"])
	assert.Equal(t, first, second)
	assert.Len(t, enc.encoded, 1) // second call never re-embedded
}

func TestRetrieve_CacheDoesNotLeakAcrossThresholds(t *testing.T) {
	cache := newFakeCache()
	r := usecase.NewRetriever(threeChunkStore(), &fakeEncoder{vector: queryVector}, cache, usecase.DefaultRetrieverConfig(), testLogger())

	q := usecase.Query{Text: "what about my taxes", UserID: "user-1", TopK: 5}

	meta := map[string]any{}
	broad := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: q.Text}, q, 0.1, meta)
	require.Len(t, broad, 3) // primes the cache including the 0.4 chunk

	meta = map[string]any{}
	narrow := r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: q.Text}, q, 0.7, meta)
	assert.Equal(t, false, meta["retrieval_cache_hit"])
	require.Len(t, narrow, 2)
	for _, c := range narrow {
		assert.GreaterOrEqual(t, c.Similarity, 0.7)
	}
}

func TestRetrieve_CacheDoesNotLeakAcrossDocumentScopes(t *testing.T) {
	store := threeChunkStore()
	cache := newFakeCache()
	r := usecase.NewRetriever(store, &fakeEncoder{vector: queryVector}, cache, usecase.DefaultRetrieverConfig(), testLogger())

	q := usecase.Query{Text: "what about my taxes", UserID: "user-1", TopK: 5}

	meta := map[string]any{}
	r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: q.Text}, q, 0.7, meta)

	scoped := q
	scoped.DocumentIDs = []string{store.chunks[0].DocumentID.String()}
	meta = map[string]any{}
	r.Retrieve(context.Background(), usecase.AnalyzedQuery{Query: q.Text}, scoped, 0.7, meta)

	assert.Equal(t, false, meta["retrieval_cache_hit"])
	assert.Equal(t, scoped.DocumentIDs, store.lastDocIDs) // scope reached the store, not the cache
}
