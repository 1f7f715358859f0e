package accounts

import (
	"context"
	"sync"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// MemoryRepository is an in-memory Repository used in tests and local
// development. All operations, including ReserveLicenseSlot, are atomic under
// a single mutex.
type MemoryRepository struct {
	mu       sync.Mutex
	byEmail  map[string]*models.Account
	licenses map[string]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byEmail:  make(map[string]*models.Account),
		licenses: make(map[string]int),
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.ClassCodes = append([]string(nil), a.ClassCodes...)
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[account.Email]; ok {
		return nil, common.ErrDuplicateEmail
	}
	stored := cloneAccount(account)

	// dedupe class codes, set semantics
	seen := make(map[string]struct{}, len(stored.ClassCodes))
	codes := stored.ClassCodes[:0]
	for _, c := range stored.ClassCodes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	stored.ClassCodes = codes

	r.byEmail[account.Email] = stored
	return cloneAccount(stored), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneAccount(account), nil
}

func (r *MemoryRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) AddClassCode(ctx context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byEmail[email]
	if !ok {
		return common.ErrNotFound
	}
	if !account.HasClassCode(code) {
		account.ClassCodes = append(account.ClassCodes, code)
	}
	return nil
}

func (r *MemoryRepository) RemoveClassCode(ctx context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byEmail[email]
	if !ok {
		return common.ErrNotFound
	}
	for i, c := range account.ClassCodes {
		if c == code {
			account.ClassCodes = append(account.ClassCodes[:i], account.ClassCodes[i+1:]...)
			return nil
		}
	}
	return common.ErrNotMember
}

func (r *MemoryRepository) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; !ok {
		return common.ErrNotFound
	}
	delete(r.byEmail, email)
	return nil
}

func (r *MemoryRepository) ReserveLicenseSlot(ctx context.Context, licenseKey string, maxAccounts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.licenses[licenseKey] >= maxAccounts {
		return common.ErrQuotaExceeded
	}
	r.licenses[licenseKey]++
	return nil
}

func (r *MemoryRepository) ReleaseLicenseSlot(ctx context.Context, licenseKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.licenses[licenseKey] > 0 {
		r.licenses[licenseKey]--
	}
	return nil
}
