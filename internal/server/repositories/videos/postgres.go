package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/dbx"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// PostgresRepository implements video metadata storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const videoColumns = `id, filename, content_length, chunk_size, title, subject,
	owner_id, owner_email, class_code, account_type, school_name, content_type, viewed, uploaded_at`

func scanVideo(row interface{ Scan(dest ...any) error }) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(&v.ID, &v.Filename, &v.ContentLength, &v.ChunkSize, &v.Title, &v.Subject,
		&v.OwnerID, &v.OwnerEmail, &v.ClassCode, &v.AccountType, &v.SchoolName,
		&v.ContentType, &v.Viewed, &v.UploadedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *PostgresRepository) Create(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, filename, content_length, chunk_size, title, subject,
			owner_id, owner_email, class_code, account_type, school_name, content_type, viewed, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		video.ID, video.Filename, video.ContentLength, video.ChunkSize, video.Title, video.Subject,
		video.OwnerID, video.OwnerEmail, video.ClassCode, video.AccountType, video.SchoolName,
		video.ContentType, video.Viewed, video.UploadedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrDuplicateVideo
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	v, err := scanVideo(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) ExistsTriple(ctx context.Context, ownerEmail, title, classCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM videos WHERE owner_email = $1 AND title = $2 AND class_code = $3)`,
		ownerEmail, title, classCode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// List builds the WHERE clause from whichever filter mode is populated.
// An empty filter matches nothing rather than everything.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.Video, error) {
	var (
		where string
		args  []any
	)
	switch {
	case f.OwnerEmail != "":
		where = "owner_email = $1"
		args = []any{f.OwnerEmail}
	case len(f.ClassCodes) > 0:
		placeholders := make([]string, len(f.ClassCodes))
		for i, code := range f.ClassCodes {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, code)
		}
		where = fmt.Sprintf("class_code IN (%s) AND school_name = $%d",
			strings.Join(placeholders, ", "), len(f.ClassCodes)+1)
		args = append(args, f.SchoolName)
	default:
		return nil, nil
	}

	query := `SELECT ` + videoColumns + ` FROM videos WHERE ` + where + ` ORDER BY uploaded_at DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) MarkViewed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE videos SET viewed = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
