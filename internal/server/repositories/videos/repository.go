// Package videos stores video metadata records. A row in this collection is
// the visibility gate for an upload: it is written only after every payload
// chunk is durably stored.
package videos

import (
	"context"

	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// Filter selects the videos visible to a requester. Exactly one mode is set:
// OwnerEmail for owner-scoped queries, or ClassCodes+SchoolName for
// class-scoped ones.
type Filter struct {
	OwnerEmail string
	ClassCodes []string
	SchoolName string
}

type Repository interface {
	// Create inserts the metadata record. Returns common.ErrDuplicateVideo
	// when a live video with the same (owner email, title, class code)
	// already exists.
	Create(ctx context.Context, video *models.Video) error

	// GetByID returns the video or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Video, error)

	// ExistsTriple reports whether a live video with the given
	// (owner email, title, class code) exists.
	ExistsTriple(ctx context.Context, ownerEmail, title, classCode string) (bool, error)

	// List returns metadata records matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*models.Video, error)

	// MarkViewed sets the viewed flag. Returns common.ErrNotFound when the
	// id is unknown.
	MarkViewed(ctx context.Context, id string) error

	// Delete removes the record. Returns common.ErrNotFound when the id is
	// unknown.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a video row with the given id exists.
	Exists(ctx context.Context, id string) (bool, error)
}
