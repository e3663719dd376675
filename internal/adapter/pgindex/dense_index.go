package pgindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docqa-retriever/internal/domain"
)

// Builder implements domain.DenseIndexBuilder on a shared Postgres
// with the pgvector extension, for deployments where chunk embeddings
// should outlive the process. Build replaces any previous rows for the
// fingerprint; queries use the L2 distance operator.
type Builder struct {
	pool *pgxpool.Pool
}

func NewBuilder(pool *pgxpool.Pool) *Builder {
	return &Builder{pool: pool}
}

func (b *Builder) Build(ctx context.Context, fingerprint string, embeddings [][]float32) (domain.DenseIndex, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings to index", domain.ErrInvalidInput)
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin index build: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE fingerprint = $1`, fingerprint); err != nil {
		return nil, fmt.Errorf("failed to clear previous index: %w", err)
	}

	rows := make([][]interface{}, len(embeddings))
	for i, emb := range embeddings {
		rows[i] = []interface{}{fingerprint, i, pgvector.NewVector(emb)}
	}
	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"document_chunks"},
		[]string{"fingerprint", "ordinal", "embedding"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert embeddings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit index build: %w", err)
	}

	return &pgIndex{pool: b.pool, fingerprint: fingerprint, count: len(embeddings)}, nil
}

type pgIndex struct {
	pool        *pgxpool.Pool
	fingerprint string
	count       int
}

func (ix *pgIndex) Len() int { return ix.count }

func (ix *pgIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.DenseHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if k > ix.count {
		k = ix.count
	}

	query := `
		SELECT ordinal, embedding <-> $2 AS distance
		FROM document_chunks
		WHERE fingerprint = $1
		ORDER BY distance ASC, ordinal ASC
		LIMIT $3
	`
	rows, err := ix.pool.Query(ctx, query, ix.fingerprint, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query dense index: %w", err)
	}
	defer rows.Close()

	var hits []domain.DenseHit
	for rows.Next() {
		var ordinal int
		var distance float64
		if err := rows.Scan(&ordinal, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		// pgvector's <-> yields plain L2; the contract is squared L2.
		hits = append(hits, domain.DenseHit{ChunkIndex: ordinal, Distance: distance * distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}
