package videos

import (
	"context"
	"sort"
	"sync"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// MemoryRepository is an in-memory Repository used in tests and local
// development.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*models.Video
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*models.Video)}
}

func (r *MemoryRepository) Create(ctx context.Context, video *models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.byID {
		if v.OwnerEmail == video.OwnerEmail && v.Title == video.Title && v.ClassCode == video.ClassCode {
			return common.ErrDuplicateVideo
		}
	}
	c := *video
	r.byID[video.ID] = &c
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (r *MemoryRepository) ExistsTriple(ctx context.Context, ownerEmail, title, classCode string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.byID {
		if v.OwnerEmail == ownerEmail && v.Title == title && v.ClassCode == classCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byID[id]
	return ok, nil
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Video
	for _, v := range r.byID {
		switch {
		case f.OwnerEmail != "":
			if v.OwnerEmail != f.OwnerEmail {
				continue
			}
		case len(f.ClassCodes) > 0:
			if v.SchoolName != f.SchoolName {
				continue
			}
			match := false
			for _, code := range f.ClassCodes {
				if v.ClassCode == code {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		default:
			continue
		}
		c := *v
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

func (r *MemoryRepository) MarkViewed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	v.Viewed = true
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
