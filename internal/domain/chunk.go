package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocumentChunk is a bounded slice of an archived document's text,
// stored together with its precomputed embeddings.
//
// A chunk may carry embeddings of more than one dimensionality (the
// archive has been re-embedded with different models over time);
// whichever column is populated for a given chunk is the one to use.
type DocumentChunk struct {
	DocumentID uuid.UUID
	FileName   string
	Ordinal    int
	Content    string

	// Embedding is the primary embedding column.
	Embedding pgvector.Vector
	// EmbeddingLarge is the alternate-dimensionality column. Empty for
	// chunks embedded with the primary model only.
	EmbeddingLarge pgvector.Vector
}

// EmbeddingFor returns the populated embedding whose dimensionality
// matches dim, or nil when the chunk has no compatible embedding.
func (c DocumentChunk) EmbeddingFor(dim int) []float32 {
	if v := c.Embedding.Slice(); len(v) == dim {
		return v
	}
	if v := c.EmbeddingLarge.Slice(); len(v) == dim {
		return v
	}
	return nil
}

// ChunkStore supplies the chunks owned by a user, optionally restricted
// to a subset of documents. All access is read-only.
type ChunkStore interface {
	// ListOwnedChunks returns every chunk owned by ownerID. When
	// documentIDs is non-empty the result is restricted to those
	// documents. Ordered by document ID and chunk ordinal.
	ListOwnedChunks(ctx context.Context, ownerID string, documentIDs []string) ([]DocumentChunk, error)
}
