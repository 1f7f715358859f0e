// Package common defines shared sentinel errors used across SchoolCast
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Account provisioning errors.
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrInvalidLicenseKey = errors.New("invalid license key for the selected account type")
	ErrInvalidSchoolName = errors.New("invalid school name")
	ErrQuotaExceeded     = errors.New("license key limit reached, no more accounts can be registered with this key")
	ErrAccountNotFound   = errors.New("account not found")
	ErrNotMember         = errors.New("class code does not exist")

	// Media catalog errors.
	ErrDuplicateVideo = errors.New("a video with the same title and class code already exists")
	ErrVideoNotFound  = errors.New("video not found")

	// Chunk store errors.
	ErrChunkIntegrity = errors.New("chunk sequence is incomplete")
	ErrUploadFailed   = errors.New("failed to upload video")
)
