// Package accounts stores identity records and the per-license-key usage
// counters that back quota enforcement.
package accounts

import (
	"context"

	"github.com/avbaranovs/schoolcast/internal/server/models"
)

type Repository interface {
	// Create inserts the account and its class codes. Returns
	// common.ErrDuplicateEmail when the email is already taken.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// GetByEmail returns the account with its class codes, or
	// common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// EmailExists reports whether an account with the given email exists.
	EmailExists(ctx context.Context, email string) (bool, error)

	// AddClassCode inserts code into the account's class-code set. Adding a
	// code that is already present is a no-op. Returns common.ErrNotFound
	// when the email is unknown.
	AddClassCode(ctx context.Context, email, code string) error

	// RemoveClassCode removes code from the account's class-code set.
	// Returns common.ErrNotFound for an unknown email and common.ErrNotMember
	// when the code is not in the set.
	RemoveClassCode(ctx context.Context, email, code string) error

	// Delete removes the account. Class codes go with it. Returns
	// common.ErrNotFound when the email is unknown.
	Delete(ctx context.Context, email string) error

	// ReserveLicenseSlot atomically increments the usage counter for the
	// license key, but only while the counter is below maxAccounts. Returns
	// common.ErrQuotaExceeded when the key is exhausted.
	ReserveLicenseSlot(ctx context.Context, licenseKey string, maxAccounts int) error

	// ReleaseLicenseSlot decrements the usage counter for the license key,
	// never below zero.
	ReleaseLicenseSlot(ctx context.Context, licenseKey string) error
}
