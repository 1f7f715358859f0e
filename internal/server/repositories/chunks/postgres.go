package chunks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/dbx"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// PostgresRepository stores chunks as bytea rows keyed by (file_id, seq).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, chunk *models.Chunk) error {
	query := `INSERT INTO chunks (file_id, seq, data, length) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, chunk.FileID, chunk.Seq, chunk.Data, chunk.Length)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, fileID string, seq int) (*models.Chunk, error) {
	query := `SELECT file_id, seq, data, length FROM chunks WHERE file_id = $1 AND seq = $2`
	chunk := &models.Chunk{}
	err := r.db.QueryRowContext(ctx, query, fileID, seq).Scan(
		&chunk.FileID, &chunk.Seq, &chunk.Data, &chunk.Length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return chunk, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, fileID string) (Stats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(length), 0) FROM chunks WHERE file_id = $1`
	var s Stats
	if err := r.db.QueryRowContext(ctx, query, fileID).Scan(&s.ChunkCount, &s.TotalLength); err != nil {
		return Stats{}, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	query := `SELECT file_id FROM chunks GROUP BY file_id HAVING MAX(created_at) < $1`
	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
