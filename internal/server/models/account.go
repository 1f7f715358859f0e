// Package models defines the persistent entities of the SchoolCast backend:
// accounts, videos, and the binary chunks a video payload is stored as.
package models

// AccountType distinguishes the two roles an account can register as.
// The role decides which videos an account can see.
type AccountType string

const (
	AccountTypeStudent AccountType = "student"
	AccountTypeTeacher AccountType = "teacher"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return t == AccountTypeStudent || t == AccountTypeTeacher
}

// Account is an identity record. Email is globally unique. ClassCodes has set
// semantics: membership only, no duplicates, order irrelevant.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	AccountType  AccountType
	SchoolName   string
	LicenseKey   string
	ClassCodes   []string
}

// HasClassCode reports whether the account is enrolled in the given class.
func (a *Account) HasClassCode(code string) bool {
	for _, c := range a.ClassCodes {
		if c == code {
			return true
		}
	}
	return false
}

// LicenseLimit describes what a license key permits: how many accounts may
// register with it and which account types it applies to. Limits are read-only
// after startup.
type LicenseLimit struct {
	MaxAccounts  int
	AccountTypes []AccountType
}

// Allows reports whether the license limit covers the given account type.
func (l LicenseLimit) Allows(t AccountType) bool {
	for _, at := range l.AccountTypes {
		if at == t {
			return true
		}
	}
	return false
}
