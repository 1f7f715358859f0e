package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/dbx"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// PostgresRepository implements account storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id, email, password_hash, first_name, account_type, school_name, license_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.FirstName,
		account.AccountType, account.SchoolName, account.LicenseKey)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	for _, code := range account.ClassCodes {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO account_class_codes (account_id, code) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			account.ID, code)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
	}

	return account, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, first_name, account_type, school_name, license_key
		FROM accounts WHERE email = $1
	`
	account := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.FirstName,
		&account.AccountType, &account.SchoolName, &account.LicenseKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT code FROM account_class_codes WHERE account_id = $1 ORDER BY code`, account.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		account.ClassCodes = append(account.ClassCodes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) accountID(ctx context.Context, email string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE email = $1`, email).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) AddClassCode(ctx context.Context, email, code string) error {
	id, err := r.accountID(ctx, email)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO account_class_codes (account_id, code) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		id, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveClassCode(ctx context.Context, email, code string) error {
	id, err := r.accountID(ctx, email)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM account_class_codes WHERE account_id = $1 AND code = $2`, id, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotMember
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE email = $1`, email)
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

// ReserveLicenseSlot performs the quota check and the increment as one
// statement so concurrent registrations on the same key serialize on the
// counter row instead of racing a count-then-insert.
func (r *PostgresRepository) ReserveLicenseSlot(ctx context.Context, licenseKey string, maxAccounts int) error {
	query := `
		INSERT INTO license_usage (license_key, used) VALUES ($1, 1)
		ON CONFLICT (license_key)
		DO UPDATE SET used = license_usage.used + 1
		WHERE license_usage.used < $2
		RETURNING used
	`
	var used int
	err := r.db.QueryRowContext(ctx, query, licenseKey, maxAccounts).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrQuotaExceeded
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReleaseLicenseSlot(ctx context.Context, licenseKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE license_usage SET used = GREATEST(used - 1, 0) WHERE license_key = $1`, licenseKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
