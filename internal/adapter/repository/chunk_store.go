package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docvault/internal/domain"
)

type chunkStore struct {
	pool *pgxpool.Pool
}

// NewChunkStore creates a read-only store over the document_chunks table.
func NewChunkStore(pool *pgxpool.Pool) domain.ChunkStore {
	return &chunkStore{pool: pool}
}

// ListOwnedChunks returns every chunk belonging to ownerID, optionally
// restricted to documentIDs. Ownership is enforced in the join so a
// request can never read another user's archive.
func (s *chunkStore) ListOwnedChunks(ctx context.Context, ownerID string, documentIDs []string) ([]domain.DocumentChunk, error) {
	query := `
		SELECT c.document_id, d.file_name, c.ordinal, c.content, c.embedding, c.embedding_large
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.owner_id = $1
	`
	args := []any{ownerID}
	if len(documentIDs) > 0 {
		query += ` AND c.document_id = ANY($2)`
		args = append(args, documentIDs)
	}
	query += ` ORDER BY c.document_id, c.ordinal`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		var large *pgvector.Vector
		if err := rows.Scan(&c.DocumentID, &c.FileName, &c.Ordinal, &c.Content, &c.Embedding, &large); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if large != nil {
			c.EmbeddingLarge = *large
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}
