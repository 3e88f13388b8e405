package provider

import (
	"context"
	"sync"

	"docvault/internal/domain"
)

// Lazy memoizes a fallible factory. The first Get builds the value;
// later Gets reuse it. A failed build is not memoized, so the next Get
// retries from scratch.
type Lazy[T any] struct {
	build func() (T, error)

	mu    sync.Mutex
	value T
	built bool
}

// NewLazy wraps the factory without invoking it.
func NewLazy[T any](build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

// Get returns the memoized value, building it on first use.
func (l *Lazy[T]) Get() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.built {
		return l.value, nil
	}
	value, err := l.build()
	if err != nil {
		var zero T
		l.value = zero
		return zero, err
	}
	l.value = value
	l.built = true
	return value, nil
}

// LazyGenerator defers constructing the generation client until the
// first call, so the service starts cleanly when the model backend is
// still warming up. Construction failures surface as call failures,
// which the pipeline already degrades on.
type LazyGenerator struct {
	inner *Lazy[domain.LLMClient]
}

// NewLazyGenerator wraps the factory in an LLMClient.
func NewLazyGenerator(build func() (domain.LLMClient, error)) *LazyGenerator {
	return &LazyGenerator{inner: NewLazy(build)}
}

func (g *LazyGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	client, err := g.inner.Get()
	if err != nil {
		return nil, err
	}
	return client.Generate(ctx, prompt, maxTokens)
}

func (g *LazyGenerator) GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan domain.StreamChunk, <-chan error, error) {
	client, err := g.inner.Get()
	if err != nil {
		return nil, nil, err
	}
	return client.GenerateStream(ctx, prompt, maxTokens)
}

func (g *LazyGenerator) Version() string {
	client, err := g.inner.Get()
	if err != nil {
		return "unavailable"
	}
	return client.Version()
}

var _ domain.LLMClient = (*LazyGenerator)(nil)
