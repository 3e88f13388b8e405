package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"docvault/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLLM struct {
	response    string
	err         error
	streamParts []string
	streamErr   error

	calls      int
	lastPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ int) (*domain.LLMResponse, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &domain.LLMResponse{Text: f.response, Done: true}, nil
}

func (f *fakeLLM) GenerateStream(_ context.Context, prompt string, _ int) (<-chan domain.StreamChunk, <-chan error, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, nil, f.err
	}
	chunks := make(chan domain.StreamChunk, len(f.streamParts)+1)
	errs := make(chan error, 1)
	go func() {
		for _, part := range f.streamParts {
			chunks <- domain.StreamChunk{Text: part}
		}
		if f.streamErr != nil {
			errs <- f.streamErr
		} else {
			chunks <- domain.StreamChunk{Done: true}
		}
		close(chunks)
		close(errs)
	}()
	return chunks, errs, nil
}

func (f *fakeLLM) Version() string { return "fake-llm" }

// fakeEncoder returns the same vector for every text, except texts
// matching failOn, which fail.
type fakeEncoder struct {
	vector []float32
	err    error
	failOn string

	mu      sync.Mutex
	encoded []string
}

func (f *fakeEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.encoded = append(f.encoded, texts...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && text == f.failOn {
			return nil, domain.ErrProviderUnavailable
		}
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEncoder) Version() string { return "fake-encoder" }

type fakeReranker struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	results := make([]domain.RerankResult, 0, len(candidates))
	for _, c := range candidates {
		if score, ok := f.scores[c.ID]; ok {
			results = append(results, domain.RerankResult{ID: c.ID, Score: score})
		}
	}
	return results, nil
}

func (f *fakeReranker) ModelName() string { return "fake-reranker" }

type fakeChunkStore struct {
	chunks []domain.DocumentChunk
	err    error

	lastOwnerID string
	lastDocIDs  []string
}

func (f *fakeChunkStore) ListOwnedChunks(_ context.Context, ownerID string, documentIDs []string) ([]domain.DocumentChunk, error) {
	f.lastOwnerID = ownerID
	f.lastDocIDs = documentIDs
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, namespace, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	raw, ok := f.entries[namespace+":"+key]
	return raw, ok
}

func (f *fakeCache) Set(_ context.Context, namespace, key string, value []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.entries[namespace+":"+key] = value
}

// wordCounter makes token budgets deterministic in tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }
func (wordCounter) Name() string          { return "words" }

// chunkWithVector builds a stored chunk whose embedding is vec.
func chunkWithVector(fileName string, ordinal int, content string, vec []float32) domain.DocumentChunk {
	return domain.DocumentChunk{
		DocumentID: uuid.New(),
		FileName:   fileName,
		Ordinal:    ordinal,
		Content:    content,
		Embedding:  pgvector.NewVector(vec),
	}
}

// vectorWithCosine returns a unit-ish 2D vector whose cosine similarity
// against (1, 0) is exactly sim.
func vectorWithCosine(sim float64) []float32 {
	y := 1 - sim*sim
	if y < 0 {
		y = 0
	}
	return []float32{float32(sim), float32(math.Sqrt(y))}
}
