package domain

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned by encoder and generator adapters
// when no provider is configured or the configured provider cannot be
// reached. Pipeline stages treat it like any other provider failure:
// log, substitute the stage fallback, keep going.
var ErrProviderUnavailable = errors.New("provider unavailable")

// LLMResponse carries the generator output and whether generation finished.
type LLMResponse struct {
	Text string
	Done bool
}

// StreamChunk is one fragment of a token-incremental generation.
type StreamChunk struct {
	Text string
	Done bool
}

// LLMClient defines the capability to send prompts to a generative
// model and receive text, either atomically or as a stream.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)

	// GenerateStream issues the prompt against the provider's streaming
	// interface. Fragments arrive on the first channel as the provider
	// emits them; a transport or decode failure arrives on the second.
	// Both channels are closed when the stream ends.
	GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan StreamChunk, <-chan error, error)

	Version() string
}
