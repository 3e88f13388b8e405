package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
)

func TestLazy_BuildsOnce(t *testing.T) {
	builds := 0
	lazy := NewLazy(func() (int, error) {
		builds++
		return 42, nil
	})

	for i := 0; i < 3; i++ {
		got, err := lazy.Get()
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	}
	assert.Equal(t, 1, builds)
}

func TestLazy_FailedBuildRetries(t *testing.T) {
	builds := 0
	lazy := NewLazy(func() (int, error) {
		builds++
		if builds == 1 {
			return 0, errors.New("backend warming up")
		}
		return 42, nil
	})

	_, err := lazy.Get()
	require.Error(t, err)

	got, err := lazy.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, builds)
}

type staticLLM struct{ text string }

func (s *staticLLM) Generate(context.Context, string, int) (*domain.LLMResponse, error) {
	return &domain.LLMResponse{Text: s.text, Done: true}, nil
}

func (s *staticLLM) GenerateStream(context.Context, string, int) (<-chan domain.StreamChunk, <-chan error, error) {
	chunks := make(chan domain.StreamChunk, 1)
	errs := make(chan error)
	chunks <- domain.StreamChunk{Text: s.text, Done: true}
	close(chunks)
	close(errs)
	return chunks, errs, nil
}

func (s *staticLLM) Version() string { return "static" }

func TestLazyGenerator_RecoversAfterFailedBuild(t *testing.T) {
	builds := 0
	g := NewLazyGenerator(func() (domain.LLMClient, error) {
		builds++
		if builds == 1 {
			return nil, domain.ErrProviderUnavailable
		}
		return &staticLLM{text: "ready"}, nil
	})

	_, err := g.Generate(context.Background(), "p", 0)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))

	resp, err := g.Generate(context.Background(), "p", 0)
	require.NoError(t, err)
	assert.Equal(t, "ready", resp.Text)
	assert.Equal(t, "static", g.Version())
	assert.Equal(t, 2, builds)
}

func TestLazyGenerator_UnavailableVersion(t *testing.T) {
	g := NewLazyGenerator(func() (domain.LLMClient, error) {
		return nil, domain.ErrProviderUnavailable
	})
	assert.Equal(t, "unavailable", g.Version())
}
