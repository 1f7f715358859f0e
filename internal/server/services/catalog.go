package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/logging"
	"github.com/avbaranovs/schoolcast/internal/server/chunkstore"
	"github.com/avbaranovs/schoolcast/internal/server/models"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/repomanager"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/videos"
)

// AccountLookup resolves requester identities to account records. Implemented
// by Directory.
type AccountLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// UploadRequest carries the metadata fields of an upload. The payload itself
// arrives as a separate byte stream.
type UploadRequest struct {
	OwnerEmail  string
	Title       string
	Subject     string
	ClassCode   string
	ContentType string
	Filename    string
}

// visibilityFor maps an account role to the query filter that decides which
// videos the account may see: students see their own uploads, teachers see
// every upload tagged with one of their class codes at their school. Adding a
// role means adding an entry here, not another query.
var visibilityFor = map[models.AccountType]func(*models.Account) videos.Filter{
	models.AccountTypeStudent: func(a *models.Account) videos.Filter {
		return videos.Filter{OwnerEmail: a.Email}
	},
	models.AccountTypeTeacher: func(a *models.Account) videos.Filter {
		return videos.Filter{ClassCodes: a.ClassCodes, SchoolName: a.SchoolName}
	},
}

// Catalog owns video metadata records and drives the chunk store: uploads
// with commit-last visibility, role-scoped listing, streaming download, and
// deletion that keeps metadata and chunks in step.
type Catalog struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	store    *chunkstore.Store
	accounts AccountLookup
	logger   logging.Logger
}

// NewCatalog constructs a Catalog on top of the chunk store.
func NewCatalog(db *sql.DB, repos repomanager.RepositoryManager, store *chunkstore.Store,
	accounts AccountLookup, logger logging.Logger) *Catalog {
	return &Catalog{
		db:       db,
		repos:    repos,
		store:    store,
		accounts: accounts,
		logger:   logger.With("module", "catalog"),
	}
}

// Upload streams the payload into the chunk store and commits the metadata
// record last. If anything fails while the payload is being persisted, the
// chunks written so far are deleted and no record becomes visible.
func (s *Catalog) Upload(ctx context.Context, req UploadRequest, body io.Reader) (*models.Video, error) {
	owner, err := s.accounts.FindByEmail(ctx, req.OwnerEmail)
	if err != nil {
		return nil, err
	}

	repo := s.repos.Videos(s.db)
	exists, err := repo.ExistsTriple(ctx, req.OwnerEmail, req.Title, req.ClassCode)
	if err != nil {
		return nil, fmt.Errorf("checking duplicate: %w", err)
	}
	if exists {
		return nil, common.ErrDuplicateVideo
	}

	fileID := uuid.NewString()
	sink := s.store.BeginUpload(ctx, fileID)

	if _, err := io.Copy(sink, body); err != nil {
		s.abort(ctx, sink, fileID)
		if errors.Is(err, common.ErrUploadFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUploadFailed, err)
	}

	info, err := sink.Finalize(ctx)
	if err != nil {
		s.abort(ctx, sink, fileID)
		return nil, fmt.Errorf("%w: %v", common.ErrUploadFailed, err)
	}

	video := &models.Video{
		ID:            fileID,
		Filename:      fmt.Sprintf("%d_%s", time.Now().UnixMilli(), req.Filename),
		ContentLength: info.ContentLength,
		ChunkSize:     s.store.ChunkSize(),
		Title:         req.Title,
		Subject:       req.Subject,
		OwnerID:       owner.ID,
		OwnerEmail:    owner.Email,
		ClassCode:     req.ClassCode,
		AccountType:   owner.AccountType,
		SchoolName:    owner.SchoolName,
		ContentType:   req.ContentType,
		UploadedAt:    time.Now(),
	}

	// the record insert is the single visibility gate; on failure the
	// chunks must go too
	if err := repo.Create(ctx, video); err != nil {
		if delErr := s.store.DeleteAll(ctx, fileID); delErr != nil {
			s.logger.Error(ctx, "failed to clean up chunks after commit failure",
				"file_id", fileID, "error", delErr)
		}
		if errors.Is(err, common.ErrDuplicateVideo) {
			return nil, common.ErrDuplicateVideo
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUploadFailed, err)
	}

	s.logger.Info(ctx, "video uploaded", "video_id", video.ID,
		"owner", video.OwnerEmail, "bytes", video.ContentLength, "chunks", info.ChunkCount)
	return video, nil
}

func (s *Catalog) abort(ctx context.Context, sink *chunkstore.Sink, fileID string) {
	if err := sink.Abort(ctx); err != nil {
		s.logger.Error(ctx, "failed to abort upload", "file_id", fileID, "error", err)
	}
}

// List returns the metadata records visible to the requester, newest first.
// Payload bytes are never included.
func (s *Catalog) List(ctx context.Context, requesterEmail string) ([]*models.Video, error) {
	requester, err := s.accounts.FindByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, err
	}

	filterFor, ok := visibilityFor[requester.AccountType]
	if !ok {
		s.logger.Warn(ctx, "account with unknown role requested listing",
			"email", requesterEmail, "account_type", requester.AccountType)
		return nil, nil
	}

	return s.repos.Videos(s.db).List(ctx, filterFor(requester))
}

// Download returns the stored content type and a reader streaming the payload
// in order. The caller must close the reader.
func (s *Catalog) Download(ctx context.Context, videoID string) (string, io.ReadCloser, error) {
	video, err := s.repos.Videos(s.db).GetByID(ctx, videoID)
	if err != nil {
		return "", nil, mapVideoErr(err)
	}

	reader, err := s.store.OpenDownload(ctx, videoID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// record without chunks should not happen under commit-last
			return "", nil, fmt.Errorf("%w: no chunks for video %s", common.ErrChunkIntegrity, videoID)
		}
		return "", nil, err
	}
	return video.ContentType, reader, nil
}

// MarkViewed flags the video as watched.
func (s *Catalog) MarkViewed(ctx context.Context, videoID string) error {
	if err := s.repos.Videos(s.db).MarkViewed(ctx, videoID); err != nil {
		return mapVideoErr(err)
	}
	return nil
}

// DeleteVideo removes the metadata record first, then the chunks. A chunk
// deletion failure is logged and left to the sweep; the record is already
// gone so the video can never appear half-deleted.
func (s *Catalog) DeleteVideo(ctx context.Context, videoID string) error {
	if err := s.repos.Videos(s.db).Delete(ctx, videoID); err != nil {
		return mapVideoErr(err)
	}
	if err := s.store.DeleteAll(ctx, videoID); err != nil {
		s.logger.Error(ctx, "failed to delete chunks, leaving for sweep",
			"video_id", videoID, "error", err)
	}

	s.logger.Info(ctx, "video deleted", "video_id", videoID)
	return nil
}

// DeleteAllForOwner removes every video owned by the given email. Used by the
// account deletion cascade.
func (s *Catalog) DeleteAllForOwner(ctx context.Context, ownerEmail string) error {
	owned, err := s.repos.Videos(s.db).List(ctx, videos.Filter{OwnerEmail: ownerEmail})
	if err != nil {
		return err
	}
	for _, v := range owned {
		if err := s.DeleteVideo(ctx, v.ID); err != nil && !errors.Is(err, common.ErrVideoNotFound) {
			return err
		}
	}
	return nil
}

// Exists reports whether a committed video record with the given id is live.
// Used by the sweep to tell orphaned chunks from real ones.
func (s *Catalog) Exists(ctx context.Context, videoID string) (bool, error) {
	return s.repos.Videos(s.db).Exists(ctx, videoID)
}

func mapVideoErr(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrVideoNotFound
	}
	return err
}
