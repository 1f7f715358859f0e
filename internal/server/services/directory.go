// Package services contains the server-side business logic: account
// provisioning (Directory), the media catalog (Catalog), and the orphan-chunk
// sweep (Sweeper).
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/dbx"
	"github.com/avbaranovs/schoolcast/internal/logging"
	"github.com/avbaranovs/schoolcast/internal/server/licenses"
	"github.com/avbaranovs/schoolcast/internal/server/models"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/accounts"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/repomanager"
)

// VideoPurger removes every video owned by an account. Implemented by
// Catalog; declared here so Directory does not depend on it directly.
type VideoPurger interface {
	DeleteAllForOwner(ctx context.Context, ownerEmail string) error
}

// NewAccount carries the fields of a registration request. PasswordHash is
// produced upstream; the directory never sees plaintext credentials.
type NewAccount struct {
	Email        string
	PasswordHash string
	FirstName    string
	AccountType  models.AccountType
	LicenseKey   string
	SchoolName   string
	ClassCodes   []string
}

// Directory owns account records: registration under license quotas,
// class-code membership, and account deletion with video cascade.
type Directory struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	registry *licenses.Registry
	schools  []string
	purger   VideoPurger
	logger   logging.Logger
}

// NewDirectory constructs a Directory. schools is the list of accepted school
// names; an empty list disables the check. Call SetVideoPurger before use so
// account deletion can cascade.
func NewDirectory(db *sql.DB, repos repomanager.RepositoryManager, registry *licenses.Registry,
	schools []string, logger logging.Logger) *Directory {
	return &Directory{
		db:       db,
		repos:    repos,
		registry: registry,
		schools:  schools,
		logger:   logger.With("module", "directory"),
	}
}

// SetVideoPurger wires the media catalog in after construction; the two
// services reference each other.
func (s *Directory) SetVideoPurger(p VideoPurger) {
	s.purger = p
}

// withTx runs fn against a transaction-bound accounts repository when a SQL
// handle is available, or directly against the manager's repository otherwise
// (the in-memory manager ignores the DBTX argument).
func (s *Directory) withTx(ctx context.Context, fn func(repo accounts.Repository) error) error {
	if s.db == nil {
		return fn(s.repos.Accounts(nil))
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(s.repos.Accounts(tx))
	})
}

// CreateAccount validates the registration request and persists the account.
// Checks run in a fixed order: license key validity for the account type,
// school name, email uniqueness, then the quota. The quota reservation and
// the insert happen atomically; concurrent registrations on the same key
// serialize on the usage counter and can never overrun the limit.
func (s *Directory) CreateAccount(ctx context.Context, req NewAccount) (*models.Account, error) {
	limit, ok := s.registry.LimitFor(req.LicenseKey)
	if !ok || !limit.Allows(req.AccountType) {
		return nil, common.ErrInvalidLicenseKey
	}

	if len(s.schools) > 0 && !contains(s.schools, req.SchoolName) {
		return nil, common.ErrInvalidSchoolName
	}

	repo := s.repos.Accounts(s.db)
	exists, err := repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, common.ErrDuplicateEmail
	}

	if limit.MaxAccounts <= 0 {
		return nil, common.ErrQuotaExceeded
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		FirstName:    req.FirstName,
		AccountType:  req.AccountType,
		SchoolName:   req.SchoolName,
		LicenseKey:   req.LicenseKey,
		ClassCodes:   req.ClassCodes,
	}

	err = s.withTx(ctx, func(repo accounts.Repository) error {
		if err := repo.ReserveLicenseSlot(ctx, req.LicenseKey, limit.MaxAccounts); err != nil {
			return err
		}
		created, err := repo.Create(ctx, account)
		if err != nil {
			// undo the reservation; inside a transaction the rollback
			// makes this a no-op, in memory it is the actual undo
			_ = repo.ReleaseLicenseSlot(ctx, req.LicenseKey)
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account registered", "email", account.Email, "license_key", account.LicenseKey)
	return account, nil
}

// FindByEmail returns the account or common.ErrAccountNotFound.
func (s *Directory) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.repos.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, mapAccountErr(err)
	}
	return account, nil
}

// AddClassCode inserts code into the account's class-code set; adding an
// existing code is a no-op.
func (s *Directory) AddClassCode(ctx context.Context, email, code string) error {
	if err := s.repos.Accounts(s.db).AddClassCode(ctx, email, code); err != nil {
		return mapAccountErr(err)
	}
	return nil
}

// RemoveClassCode removes code from the account's class-code set; removing a
// code the account does not hold fails with common.ErrNotMember.
func (s *Directory) RemoveClassCode(ctx context.Context, email, code string) error {
	if err := s.repos.Accounts(s.db).RemoveClassCode(ctx, email, code); err != nil {
		return mapAccountErr(err)
	}
	return nil
}

// DeleteAccount removes the account, every video it owns, and its license
// reservation.
func (s *Directory) DeleteAccount(ctx context.Context, email string) error {
	account, err := s.repos.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		return mapAccountErr(err)
	}

	if s.purger != nil {
		if err := s.purger.DeleteAllForOwner(ctx, email); err != nil {
			return fmt.Errorf("purging videos: %w", err)
		}
	}

	err = s.withTx(ctx, func(repo accounts.Repository) error {
		if err := repo.Delete(ctx, email); err != nil {
			return err
		}
		return repo.ReleaseLicenseSlot(ctx, account.LicenseKey)
	})
	if err != nil {
		return mapAccountErr(err)
	}

	s.logger.Info(ctx, "account deleted", "email", email)
	return nil
}

func mapAccountErr(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrAccountNotFound
	}
	return err
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
