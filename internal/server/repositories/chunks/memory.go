package chunks

import (
	"context"
	"sync"
	"time"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// MemoryRepository is an in-memory Repository used in tests and local
// development.
type MemoryRepository struct {
	mu      sync.Mutex
	files   map[string]map[int]*models.Chunk
	touched map[string]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		files:   make(map[string]map[int]*models.Chunk),
		touched: make(map[string]time.Time),
	}
}

func (r *MemoryRepository) Insert(ctx context.Context, chunk *models.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, ok := r.files[chunk.FileID]
	if !ok {
		file = make(map[int]*models.Chunk)
		r.files[chunk.FileID] = file
	}
	c := *chunk
	c.Data = append([]byte(nil), chunk.Data...)
	file[chunk.Seq] = &c
	r.touched[chunk.FileID] = time.Now()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, fileID string, seq int) (*models.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunk, ok := r.files[fileID][seq]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *chunk
	c.Data = append([]byte(nil), chunk.Data...)
	return &c, nil
}

func (r *MemoryRepository) Stats(ctx context.Context, fileID string) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	for _, chunk := range r.files[fileID] {
		s.ChunkCount++
		s.TotalLength += int64(chunk.Length)
	}
	return s, nil
}

func (r *MemoryRepository) DeleteAll(ctx context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.files, fileID)
	delete(r.touched, fileID)
	return nil
}

func (r *MemoryRepository) ListStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []string
	for fileID, at := range r.touched {
		if at.Before(olderThan) {
			result = append(result, fileID)
		}
	}
	return result, nil
}

// DeleteChunk removes a single chunk. Test hook for provoking sequence gaps.
func (r *MemoryRepository) DeleteChunk(fileID string, seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.files[fileID], seq)
}
