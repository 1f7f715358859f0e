package services

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/avbaranovs/schoolcast/internal/logging"
	"github.com/avbaranovs/schoolcast/internal/server/chunkstore"
)

// VideoChecker reports whether a video record is live. Implemented by Catalog.
type VideoChecker interface {
	Exists(ctx context.Context, videoID string) (bool, error)
}

// Sweeper reclaims orphaned chunks: payloads whose upload aborted between
// chunk writes and the metadata commit, or whose record deletion could not
// remove the chunks. Only chunk sets older than the grace window are touched,
// so in-flight uploads are never swept.
type Sweeper struct {
	store    *chunkstore.Store
	videos   VideoChecker
	interval time.Duration
	grace    time.Duration
	logger   logging.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(store *chunkstore.Store, videos VideoChecker,
	interval, grace time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		videos:   videos,
		interval: interval,
		grace:    grace,
		logger:   logger.With("module", "sweeper"),
	}
}

// Run executes SweepOnce on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce scans for stale chunk sets and deletes the ones without a live
// video record. Each delete is retried with fibonacci backoff; a chunk set
// that keeps failing stays for the next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	stale, err := s.store.ListStale(ctx, time.Now().Add(-s.grace))
	if err != nil {
		return err
	}

	for _, fileID := range stale {
		live, err := s.videos.Exists(ctx, fileID)
		if err != nil {
			return err
		}
		if live {
			continue
		}

		backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))
		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			return retry.RetryableError(s.store.DeleteAll(ctx, fileID))
		})
		if err != nil {
			s.logger.Warn(ctx, "could not reclaim orphaned chunks", "file_id", fileID, "error", err)
			continue
		}
		s.logger.Info(ctx, "reclaimed orphaned chunks", "file_id", fileID)
	}
	return nil
}
