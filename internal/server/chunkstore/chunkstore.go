// Package chunkstore implements the low-level binary object store. An
// incoming byte stream is sliced into fixed-size chunks which are persisted
// one by one as they fill, so peak memory stays at one chunk regardless of
// payload size. Reads reassemble the chunks strictly in sequence order,
// fetching lazily one chunk at a time.
//
// Chunks written under a file id are speculative: nothing outside the store
// may reference the id until the sink is finalized and the owning metadata
// record is committed by the caller.
package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/server/models"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/chunks"
)

// DefaultChunkSize matches the GridFS default the original deployment used.
const DefaultChunkSize = 255 * 1024

// FileInfo is the reconciled result of a finalized upload.
type FileInfo struct {
	ContentLength int64
	ChunkCount    int
}

// Store persists and reassembles chunked payloads through a chunks.Repository.
type Store struct {
	repo      chunks.Repository
	chunkSize int
	maxBytes  int64
}

// New builds a Store. chunkSize <= 0 falls back to DefaultChunkSize;
// maxBytes <= 0 disables the size cap.
func New(repo chunks.Repository, chunkSize int, maxBytes int64) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Store{repo: repo, chunkSize: chunkSize, maxBytes: maxBytes}
}

// ChunkSize returns the configured chunk size in bytes.
func (s *Store) ChunkSize() int {
	return s.chunkSize
}

// BeginUpload returns a write sink for the given file id. The caller must
// either Finalize or Abort the sink; until Finalize succeeds the chunks are
// not considered committed.
func (s *Store) BeginUpload(ctx context.Context, fileID string) *Sink {
	return &Sink{
		store:  s,
		ctx:    ctx,
		fileID: fileID,
		buf:    make([]byte, 0, s.chunkSize),
	}
}

// Sink accepts a byte stream of arbitrary length and persists it as ordered
// chunks. It implements io.Writer; a Write only returns once the chunks it
// completed are stored, which gives the producer natural backpressure.
type Sink struct {
	store   *Store
	ctx     context.Context
	fileID  string
	buf     []byte
	seq     int
	written int64
	done    bool
	failed  bool
}

func (w *Sink) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.New("write on finalized sink")
	}
	if w.failed {
		return 0, errors.New("write on failed sink")
	}
	if err := w.ctx.Err(); err != nil {
		w.failed = true
		return 0, err
	}
	if w.store.maxBytes > 0 && w.written+int64(len(p)) > w.store.maxBytes {
		w.failed = true
		return 0, fmt.Errorf("%w: payload exceeds %d bytes", common.ErrUploadFailed, w.store.maxBytes)
	}

	total := 0
	for len(p) > 0 {
		n := w.store.chunkSize - len(w.buf)
		if n > len(p) {
			n = len(p)
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		total += n
		w.written += int64(n)

		if len(w.buf) == w.store.chunkSize {
			if err := w.flush(); err != nil {
				w.failed = true
				return total, err
			}
		}
	}
	return total, nil
}

func (w *Sink) flush() error {
	chunk := &models.Chunk{
		FileID: w.fileID,
		Seq:    w.seq,
		Data:   w.buf,
		Length: len(w.buf),
	}
	if err := w.store.repo.Insert(w.ctx, chunk); err != nil {
		return err
	}
	w.seq++
	w.buf = make([]byte, 0, w.store.chunkSize)
	return nil
}

// Finalize flushes the trailing partial chunk and reconciles what was stored
// against what the sink counted. An empty payload is stored as a single
// zero-length chunk so a committed file is always distinguishable from an
// absent one.
func (w *Sink) Finalize(ctx context.Context) (FileInfo, error) {
	if w.done {
		return FileInfo{}, errors.New("sink already finalized")
	}
	if w.failed {
		return FileInfo{}, errors.New("finalize on failed sink")
	}
	w.done = true

	if len(w.buf) > 0 || w.seq == 0 {
		if err := w.flush(); err != nil {
			return FileInfo{}, err
		}
	}

	stats, err := w.store.repo.Stats(ctx, w.fileID)
	if err != nil {
		return FileInfo{}, err
	}
	if stats.ChunkCount != w.seq || stats.TotalLength != w.written {
		return FileInfo{}, fmt.Errorf("%w: stored %d chunks/%d bytes, wrote %d chunks/%d bytes",
			common.ErrChunkIntegrity, stats.ChunkCount, stats.TotalLength, w.seq, w.written)
	}

	return FileInfo{ContentLength: w.written, ChunkCount: w.seq}, nil
}

// Abort deletes every chunk written so far, leaving no partial record behind.
// Safe to call after a failed Write or instead of Finalize.
func (w *Sink) Abort(ctx context.Context) error {
	w.done = true
	return w.store.repo.DeleteAll(ctx, w.fileID)
}

// OpenDownload returns a reader over the committed chunks of fileID, in
// ascending sequence order. Returns common.ErrNotFound when nothing is stored
// under the id.
func (s *Store) OpenDownload(ctx context.Context, fileID string) (*Reader, error) {
	stats, err := s.repo.Stats(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if stats.ChunkCount == 0 {
		return nil, common.ErrNotFound
	}
	return &Reader{
		store:  s,
		ctx:    ctx,
		fileID: fileID,
		count:  stats.ChunkCount,
	}, nil
}

// Reader streams a file chunk by chunk. The next chunk is only fetched when
// the current one is drained, so a slow consumer holds back the producer side
// naturally. Closing the reader stops any further fetches.
type Reader struct {
	store  *Store
	ctx    context.Context
	fileID string
	count  int
	next   int
	cur    []byte
	closed bool
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read on closed reader")
	}
	for len(r.cur) == 0 {
		if r.next >= r.count {
			return 0, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		chunk, err := r.store.repo.Get(r.ctx, r.fileID, r.next)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return 0, fmt.Errorf("%w: missing chunk %d of %d for file %s",
					common.ErrChunkIntegrity, r.next, r.count, r.fileID)
			}
			return 0, err
		}
		r.next++
		r.cur = chunk.Data
	}

	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// Close releases the reader. Further Reads fail.
func (r *Reader) Close() error {
	r.closed = true
	r.cur = nil
	return nil
}

// DeleteAll removes every chunk stored for fileID. Idempotent.
func (s *Store) DeleteAll(ctx context.Context, fileID string) error {
	return s.repo.DeleteAll(ctx, fileID)
}

// ListStale returns file ids whose newest chunk predates olderThan.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	return s.repo.ListStale(ctx, olderThan)
}
