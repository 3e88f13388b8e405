package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StreamEventKind discriminates the events emitted by AnswerStream.
type StreamEventKind string

const (
	// StreamEventStage is a human-readable progress marker.
	StreamEventStage StreamEventKind = "stage"
	// StreamEventSources carries the ranked source chunks, emitted once
	// before generation starts.
	StreamEventSources StreamEventKind = "sources"
	// StreamEventDelta carries an incremental answer fragment.
	StreamEventDelta StreamEventKind = "delta"
	// StreamEventDone closes the stream with the final metadata.
	StreamEventDone StreamEventKind = "done"
	// StreamEventError reports a degraded stream; a Delta with the
	// fallback message precedes it.
	StreamEventError StreamEventKind = "error"
)

// StreamEvent is one element of an AnswerStream.
type StreamEvent struct {
	Kind     StreamEventKind `json:"kind"`
	Text     string          `json:"text,omitempty"`
	Sources  []RankedResult  `json:"sources,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// AnswerStream runs the same pipeline as Answer but emits progress
// markers while the context is being prepared and streams the answer
// incrementally. The channel is closed when the stream ends; sends
// respect ctx so an abandoned consumer never wedges the pipeline.
func (p *AnswerPipeline) AnswerStream(ctx context.Context, q Query) <-chan StreamEvent {
	events := make(chan StreamEvent, 8)

	go func() {
		defer close(events)

		start := time.Now()
		meta := map[string]any{
			"request_id": uuid.NewString(),
		}

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("stream_pipeline_panic", slog.Any("panic", r))
				p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: AnswerFailedMessage})
				p.send(ctx, events, StreamEvent{Kind: StreamEventError, Metadata: meta})
			}
		}()

		if q.TopK <= 0 {
			q.TopK = p.config.DefaultTopK
		}
		if strings.TrimSpace(q.Text) == "" {
			meta["failure"] = "empty query"
			p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: AnswerFailedMessage})
			p.send(ctx, events, StreamEvent{Kind: StreamEventError, Metadata: meta})
			return
		}

		if !p.send(ctx, events, StreamEvent{Kind: StreamEventStage, Text: "Analyzing query..."}) {
			return
		}
		analyzed, analysisHit := p.analyzer.Analyze(ctx, q.Text)
		meta["analysis_cache_hit"] = analysisHit

		if !p.send(ctx, events, StreamEvent{Kind: StreamEventStage, Text: "Searching documents..."}) {
			return
		}
		candidates := p.retriever.Retrieve(ctx, analyzed, q, p.config.MinSimilarity, meta)
		meta["candidate_count"] = len(candidates)

		if !p.send(ctx, events, StreamEvent{Kind: StreamEventStage, Text: "Ranking results..."}) {
			return
		}
		ranked := p.rerank.Rank(ctx, q.Text, q.UserID, candidates, q.TopK, meta)

		compressed := p.compressor.Compress(q.Text, ranked)
		meta["original_tokens"] = compressed.OriginalTokens
		meta["compressed_tokens"] = compressed.CompressedTokens

		if strings.TrimSpace(compressed.Text) == "" {
			p.send(ctx, events, StreamEvent{Kind: StreamEventSources, Sources: []RankedResult{}})
			p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: NoRelevantDocumentsMessage})
			meta["elapsed_ms"] = time.Since(start).Milliseconds()
			p.send(ctx, events, StreamEvent{Kind: StreamEventDone, Metadata: meta})
			return
		}

		if !p.send(ctx, events, StreamEvent{Kind: StreamEventSources, Sources: ranked}) {
			return
		}
		if !p.send(ctx, events, StreamEvent{Kind: StreamEventStage, Text: "Generating answer..."}) {
			return
		}

		p.streamGeneration(ctx, events, q.Text, compressed.Text, len(ranked), meta)

		meta["elapsed_ms"] = time.Since(start).Milliseconds()
		p.send(ctx, events, StreamEvent{Kind: StreamEventDone, Metadata: meta})
	}()

	return events
}

// streamGeneration drives the provider stream and forwards deltas.
// Any provider failure degrades to the fixed fallback message.
func (p *AnswerPipeline) streamGeneration(ctx context.Context, events chan<- StreamEvent, query, contextText string, sourceCount int, meta map[string]any) {
	if p.llm == nil {
		meta["synthesis_error"] = "provider unavailable"
		p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: AnswerFailedMessage})
		return
	}

	prompt := p.prompts.Build(query, contextText)

	callCtx, cancel := context.WithTimeout(ctx, p.config.GenerateTimeout)
	defer cancel()

	chunks, errs, err := p.llm.GenerateStream(callCtx, prompt, p.config.MaxAnswerTokens)
	if err != nil {
		p.logger.Warn("stream_synthesis_failed", slog.String("error", err.Error()))
		meta["synthesis_error"] = err.Error()
		p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: AnswerFailedMessage})
		return
	}

	var answer strings.Builder
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// The error channel may hold a failure that raced the close.
				select {
				case streamErr, ok := <-errs:
					if ok && streamErr != nil {
						p.logger.Warn("stream_synthesis_interrupted", slog.String("error", streamErr.Error()))
						meta["synthesis_error"] = streamErr.Error()
						if answer.Len() == 0 {
							p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: AnswerFailedMessage})
							return
						}
					}
				default:
				}
				meta["cited_documents"] = ExtractCitations(answer.String(), sourceCount)
				return
			}
			if chunk.Text != "" {
				answer.WriteString(chunk.Text)
				if !p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: chunk.Text}) {
					return
				}
			}
			if chunk.Done {
				meta["cited_documents"] = ExtractCitations(answer.String(), sourceCount)
				return
			}
		case streamErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Warn("stream_synthesis_interrupted", slog.String("error", streamErr.Error()))
			meta["synthesis_error"] = streamErr.Error()
			if answer.Len() == 0 {
				p.send(ctx, events, StreamEvent{Kind: StreamEventDelta, Text: AnswerFailedMessage})
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// send delivers an event unless the consumer is gone.
func (p *AnswerPipeline) send(ctx context.Context, events chan<- StreamEvent, e StreamEvent) bool {
	select {
	case events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
