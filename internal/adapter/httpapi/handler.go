// Package httpapi exposes the answer pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"docvault/internal/infra/logger"
	"docvault/internal/usecase"
)

// Pipeline is the surface the handler needs from the answer pipeline.
type Pipeline interface {
	Answer(ctx context.Context, q usecase.Query) *usecase.Response
	AnswerStream(ctx context.Context, q usecase.Query) <-chan usecase.StreamEvent
	Search(ctx context.Context, q usecase.Query, minSimilarity float64) ([]usecase.RetrievalCandidate, map[string]any)
}

type Handler struct {
	pipeline Pipeline
}

func NewHandler(pipeline Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// Register mounts the API routes.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/answer", h.Answer)
	e.POST("/v1/answer/stream", h.AnswerStream)
	e.POST("/v1/search", h.Search)
}

type answerRequest struct {
	Query       string   `json:"query"`
	UserID      string   `json:"user_id"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

type searchRequest struct {
	answerRequest
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

type answerResponse struct {
	Answer    string                 `json:"answer"`
	Sources   []usecase.RankedResult `json:"sources"`
	ElapsedMs int64                  `json:"elapsed_ms"`
	CacheHit  bool                   `json:"cache_hit"`
	Metadata  map[string]any         `json:"metadata"`
}

type searchResponse struct {
	Results  []usecase.RetrievalCandidate `json:"results"`
	Metadata map[string]any               `json:"metadata"`
}

func (r answerRequest) validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// requestContext tags the request context with the validated user so
// downstream context-aware log lines correlate by user.
func requestContext(ctx echo.Context, userID string) context.Context {
	return logger.WithUserID(ctx.Request().Context(), userID)
}

func (r answerRequest) toQuery() usecase.Query {
	return usecase.Query{
		Text:        r.Query,
		UserID:      r.UserID,
		DocumentIDs: r.DocumentIDs,
		TopK:        r.TopK,
	}
}

// Answer runs the full pipeline and returns the complete response.
// (POST /v1/answer)
func (h *Handler) Answer(ctx echo.Context) error {
	var req answerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := req.validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp := h.pipeline.Answer(requestContext(ctx, req.UserID), req.toQuery())

	return ctx.JSON(http.StatusOK, answerResponse{
		Answer:    resp.Answer,
		Sources:   resp.Sources,
		ElapsedMs: resp.Elapsed.Milliseconds(),
		CacheHit:  resp.CacheHit,
		Metadata:  resp.Metadata,
	})
}

// AnswerStream runs the pipeline and emits progress and answer deltas
// as server-sent events.
// (POST /v1/answer/stream)
func (h *Handler) AnswerStream(ctx echo.Context) error {
	var req answerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := req.validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	flusher, canFlush := res.Writer.(http.Flusher)

	for event := range h.pipeline.AnswerStream(requestContext(ctx, req.UserID), req.toQuery()) {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Kind, payload); err != nil {
			// Client went away; the pipeline notices through the request
			// context and shuts the stream down.
			break
		}
		if canFlush {
			flusher.Flush()
		}
	}
	return nil
}

// Search returns ranked source chunks without generating an answer.
// (POST /v1/search)
func (h *Handler) Search(ctx echo.Context) error {
	var req searchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := req.validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	results, meta := h.pipeline.Search(requestContext(ctx, req.UserID), req.toQuery(), req.MinSimilarity)

	return ctx.JSON(http.StatusOK, searchResponse{
		Results:  results,
		Metadata: meta,
	})
}
