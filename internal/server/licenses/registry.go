// Package licenses implements the license key registry: a static lookup table
// mapping each provisioning key to its account quota and the account types it
// may be used with.
package licenses

import "github.com/avbaranovs/schoolcast/internal/server/models"

// Registry is built once at startup and never mutated afterwards, so it is
// safe for concurrent readers without locking.
type Registry struct {
	limits map[string]models.LicenseLimit
}

// New builds a Registry from a key->max-accounts map and a per-account-type
// list of valid keys. A key listed for a type but missing from limits gets
// MaxAccounts 0, i.e. it is always exhausted.
func New(limits map[string]int, validKeys map[models.AccountType][]string) *Registry {
	r := &Registry{limits: make(map[string]models.LicenseLimit)}

	for key, max := range limits {
		r.limits[key] = models.LicenseLimit{MaxAccounts: max}
	}
	for accountType, keys := range validKeys {
		for _, key := range keys {
			limit := r.limits[key]
			limit.AccountTypes = append(limit.AccountTypes, accountType)
			r.limits[key] = limit
		}
	}
	return r
}

// LimitFor returns the limit for the given license key. The second return
// value is false for an unknown key.
func (r *Registry) LimitFor(key string) (models.LicenseLimit, bool) {
	limit, ok := r.limits[key]
	return limit, ok
}
