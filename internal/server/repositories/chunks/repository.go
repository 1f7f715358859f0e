// Package chunks stores the ordered binary segments a video payload is split
// into. The chunk collection knows nothing about accounts or access rules;
// chunks are addressed only by (file id, sequence number).
package chunks

import (
	"context"
	"time"

	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// Stats summarizes what is stored for one file id.
type Stats struct {
	ChunkCount  int
	TotalLength int64
}

type Repository interface {
	// Insert persists one chunk. (file id, seq) must not already exist.
	Insert(ctx context.Context, chunk *models.Chunk) error

	// Get returns the chunk with the given sequence number, or
	// common.ErrNotFound.
	Get(ctx context.Context, fileID string, seq int) (*models.Chunk, error)

	// Stats returns the chunk count and total payload length stored for the
	// file id. A file with no chunks yields zero stats, not an error.
	Stats(ctx context.Context, fileID string) (Stats, error)

	// DeleteAll removes every chunk for the file id. Idempotent.
	DeleteAll(ctx context.Context, fileID string) error

	// ListStale returns the file ids whose most recent chunk was written
	// before olderThan. Used by the orphan sweep.
	ListStale(ctx context.Context, olderThan time.Time) ([]string, error)
}
