// Package services holds the storage core's business logic: upload
// validation, quota enforcement, listing, download, removal and usage.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/ezfile/internal/cache"
	"github.com/dmitrijs2005/ezfile/internal/common"
	"github.com/dmitrijs2005/ezfile/internal/filex"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
	"github.com/dmitrijs2005/ezfile/internal/storage"
)

// Transfer moves file bytes between the messaging platform and local disk.
type Transfer interface {
	// Fetch streams the content of an announced document into w.
	Fetch(ctx context.Context, file models.IncomingFile, w io.Writer) error
	// Send delivers a stored file back to the user.
	Send(ctx context.Context, userID models.UserID, name string, r io.Reader) error
}

// Replicator mirrors accepted files elsewhere. Failures never fail the
// operation that triggered them.
type Replicator interface {
	Put(ctx context.Context, userID models.UserID, rec models.FileRecord) error
	Delete(ctx context.Context, userID models.UserID, name string) error
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	Upload(result string, bytes int64)
	Download(result string)
	Remove(result string)
}

// Limits are the per-file and per-user ceilings in bytes.
type Limits struct {
	MaxFileSize    int64
	MaxUserStorage int64
}

// DefaultLimits are 4 MiB per file and 50 MiB per user.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:    common.DefaultMaxFileSize,
		MaxUserStorage: common.DefaultMaxUserStorage,
	}
}

type FileService struct {
	layout   *storage.Layout
	cache    *cache.DirCache
	transfer Transfer
	replica  Replicator
	recorder Recorder
	limits   Limits
	logger   logging.Logger
}

func NewFileService(layout *storage.Layout, c *cache.DirCache, t Transfer, limits Limits, l logging.Logger) *FileService {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = common.DefaultMaxFileSize
	}
	if limits.MaxUserStorage <= 0 {
		limits.MaxUserStorage = common.DefaultMaxUserStorage
	}
	return &FileService{
		layout:   layout,
		cache:    c,
		transfer: t,
		replica:  nopReplica{},
		recorder: nopRecorder{},
		limits:   limits,
		logger:   logging.OrNop(l).With("module", "file_service"),
	}
}

// SetReplicator configures the off-site copy.
func (s *FileService) SetReplicator(r Replicator) {
	if r != nil {
		s.replica = r
	}
}

// SetRecorder configures the metrics sink.
func (s *FileService) SetRecorder(r Recorder) {
	if r != nil {
		s.recorder = r
	}
}

// Limits returns the effective ceilings.
func (s *FileService) Limits() Limits {
	return s.limits
}

// Upload validates and stores an incoming document.
//
// The declared size is checked before any byte is transferred. The content is
// staged outside the user directory, measured, and only moved into place when
// the user's usage (without a same-name file it replaces) plus the new size
// fits the quota. Rejected or failed transfers leave nothing behind.
func (s *FileService) Upload(ctx context.Context, userID models.UserID, in models.IncomingFile) (rec models.FileRecord, err error) {
	defer func() {
		s.recorder.Upload(resultLabel(err), rec.Size)
	}()

	name := storage.SanitizeName(in.Name)
	if name == "" {
		return models.FileRecord{}, common.ErrMissingName
	}

	if in.Size > s.limits.MaxFileSize {
		return models.FileRecord{}, fmt.Errorf("%w: declared %d bytes, limit %d", common.ErrSizeExceeded, in.Size, s.limits.MaxFileSize)
	}

	dir, err := s.layout.DirectoryFor(userID)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("prepare user directory: %w", err)
	}

	staged, err := s.layout.Stage()
	if err != nil {
		return models.FileRecord{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(staged.Name())
		}
	}()

	if err := s.transfer.Fetch(ctx, in, staged); err != nil {
		_ = staged.Close()
		return models.FileRecord{}, fmt.Errorf("%w: %w", common.ErrTransfer, err)
	}
	if err := staged.Close(); err != nil {
		return models.FileRecord{}, fmt.Errorf("%w: %w", common.ErrTransfer, err)
	}

	fi, err := os.Stat(staged.Name())
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("stat staged file: %w", err)
	}
	size := fi.Size()

	if size > s.limits.MaxFileSize {
		return models.FileRecord{}, fmt.Errorf("%w: received %d bytes, limit %d", common.ErrSizeExceeded, size, s.limits.MaxFileSize)
	}

	target := filepath.Join(dir, name)

	prior, err := s.layout.Usage(userID)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("compute usage: %w", err)
	}
	if old, err := os.Stat(target); err == nil && old.Mode().IsRegular() {
		prior -= old.Size()
	}

	if prior+size > s.limits.MaxUserStorage {
		return models.FileRecord{}, fmt.Errorf("%w: %d + %d bytes, limit %d", common.ErrQuotaExceeded, prior, size, s.limits.MaxUserStorage)
	}

	if err := os.Rename(staged.Name(), target); err != nil {
		s.cache.Invalidate(userID)
		return models.FileRecord{}, fmt.Errorf("commit %s: %w", name, err)
	}
	committed = true

	rec = models.FileRecord{Name: name, Size: size, Path: target}
	s.cache.Put(userID, rec)

	if err := s.replica.Put(ctx, userID, rec); err != nil {
		s.logger.Warn(ctx, "replica put failed", "user_id", userID, "name", name, "error", err)
	}

	s.logger.Info(ctx, "file stored", "user_id", userID, "name", name, "size", size)
	return rec, nil
}

// List returns the user's files from the directory cache.
func (s *FileService) List(ctx context.Context, userID models.UserID) ([]models.FileRecord, error) {
	return s.cache.List(userID)
}

// Download sends a stored file back to its owner. Any failure, including a
// failure of the transport while sending, is reported as common.ErrorNotFound.
func (s *FileService) Download(ctx context.Context, userID models.UserID, name string) (err error) {
	defer func() {
		s.recorder.Download(resultLabel(err))
	}()

	path, err := s.layout.PathFor(userID, name)
	if err != nil {
		return err
	}

	if ok, err := filex.IsFile(path); err != nil || !ok {
		return fmt.Errorf("%w: %s", common.ErrorNotFound, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", common.ErrorNotFound, name)
	}
	defer f.Close()

	if err := s.transfer.Send(ctx, userID, name, f); err != nil {
		s.logger.Warn(ctx, "send failed", "user_id", userID, "name", name, "error", err)
		return fmt.Errorf("%w: send %s: %w", common.ErrorNotFound, name, err)
	}
	return nil
}

// Remove deletes a stored file and returns the record it had, so callers can
// report the freed space.
func (s *FileService) Remove(ctx context.Context, userID models.UserID, name string) (rec models.FileRecord, err error) {
	defer func() {
		s.recorder.Remove(resultLabel(err))
	}()

	path, err := s.layout.PathFor(userID, name)
	if err != nil {
		return models.FileRecord{}, err
	}

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return models.FileRecord{}, fmt.Errorf("%w: %s", common.ErrorNotFound, name)
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.FileRecord{}, fmt.Errorf("%w: %s", common.ErrorNotFound, name)
		}
		s.cache.Invalidate(userID)
		return models.FileRecord{}, fmt.Errorf("remove %s: %w", name, err)
	}
	s.cache.Remove(userID, name)

	if err := s.replica.Delete(ctx, userID, name); err != nil {
		s.logger.Warn(ctx, "replica delete failed", "user_id", userID, "name", name, "error", err)
	}

	s.logger.Info(ctx, "file removed", "user_id", userID, "name", name, "size", fi.Size())
	return models.FileRecord{Name: name, Size: fi.Size(), Path: path}, nil
}

// Usage is the live on-disk total for the user; never cached.
func (s *FileService) Usage(ctx context.Context, userID models.UserID) (int64, error) {
	return s.layout.Usage(userID)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrMissingName):
		return "missing_name"
	case errors.Is(err, common.ErrSizeExceeded):
		return "size_exceeded"
	case errors.Is(err, common.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, common.ErrTransfer):
		return "transfer_error"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type nopReplica struct{}

func (nopReplica) Put(context.Context, models.UserID, models.FileRecord) error { return nil }
func (nopReplica) Delete(context.Context, models.UserID, string) error         { return nil }

type nopRecorder struct{}

func (nopRecorder) Upload(string, int64) {}
func (nopRecorder) Download(string)      {}
func (nopRecorder) Remove(string)        {}
