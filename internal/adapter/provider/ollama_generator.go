package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docvault/internal/domain"
)

// OllamaGenerator sends prompts to Ollama's generate endpoint, either
// atomically or as a token stream.
type OllamaGenerator struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewOllamaGenerator constructs a generator for the given endpoint and
// model name. If client is nil a default http.Client is created with
// the given timeout.
func NewOllamaGenerator(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *OllamaGenerator {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &OllamaGenerator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (g *OllamaGenerator) requestBody(prompt string, maxTokens int, stream bool) generateRequest {
	req := generateRequest{
		Model:  g.Model,
		Prompt: prompt,
		Stream: stream,
		Options: map[string]any{
			"temperature": 0.2,
		},
	}
	if maxTokens > 0 {
		req.Options["num_predict"] = maxTokens
	}
	return req
}

func (g *OllamaGenerator) post(ctx context.Context, body generateRequest) (*http.Response, error) {
	jsonPayload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call generate endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("generate endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}
	return resp, nil
}

// Generate sends the prompt and returns the complete response text.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	if g.BaseURL == "" {
		return nil, domain.ErrProviderUnavailable
	}

	start := time.Now()
	resp, err := g.post(ctx, g.requestBody(prompt, maxTokens, false))
	if err != nil {
		g.logger.Warn("generation_failed", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode generate response: %w", err)
	}

	g.logger.Debug("generation_completed",
		slog.Int("response_chars", len(genResp.Response)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.LLMResponse{
		Text: strings.TrimSpace(genResp.Response),
		Done: genResp.Done,
	}, nil
}

// GenerateStream sends the prompt with streaming enabled and forwards
// each NDJSON fragment as it arrives. Both channels close when the
// stream ends.
func (g *OllamaGenerator) GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan domain.StreamChunk, <-chan error, error) {
	if g.BaseURL == "" {
		return nil, nil, domain.ErrProviderUnavailable
	}

	resp, err := g.post(ctx, g.requestBody(prompt, maxTokens, true))
	if err != nil {
		g.logger.Warn("stream_generation_failed", slog.String("error", err.Error()))
		return nil, nil, err
	}

	chunks := make(chan domain.StreamChunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var fragment generateResponse
			if err := json.Unmarshal(line, &fragment); err != nil {
				errs <- fmt.Errorf("failed to decode stream fragment: %w", err)
				return
			}

			select {
			case chunks <- domain.StreamChunk{Text: fragment.Response, Done: fragment.Done}:
			case <-ctx.Done():
				return
			}
			if fragment.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("stream read failed: %w", err)
		}
	}()

	return chunks, errs, nil
}

// Version returns the wrapped model name.
func (g *OllamaGenerator) Version() string {
	return g.Model
}

var _ domain.LLMClient = (*OllamaGenerator)(nil)
