package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ezfile/internal/cache"
	"github.com/dmitrijs2005/ezfile/internal/common"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
	"github.com/dmitrijs2005/ezfile/internal/storage"
)

// --- helpers ---

type fakeTransfer struct {
	content  map[string][]byte
	fetchErr error
	partial  int
	sendErr  error
	sent     map[string][]byte
	fetches  int
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{content: map[string][]byte{}, sent: map[string][]byte{}}
}

func (f *fakeTransfer) Fetch(ctx context.Context, file models.IncomingFile, w io.Writer) error {
	f.fetches++
	if f.fetchErr != nil {
		_, _ = w.Write(make([]byte, f.partial))
		return f.fetchErr
	}
	_, err := w.Write(f.content[file.ID])
	return err
}

func (f *fakeTransfer) Send(ctx context.Context, userID models.UserID, name string, r io.Reader) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.sent[name] = b
	return nil
}

type fakeReplica struct {
	puts    []string
	deletes []string
	err     error
}

func (r *fakeReplica) Put(ctx context.Context, userID models.UserID, rec models.FileRecord) error {
	r.puts = append(r.puts, rec.Name)
	return r.err
}

func (r *fakeReplica) Delete(ctx context.Context, userID models.UserID, name string) error {
	r.deletes = append(r.deletes, name)
	return r.err
}

type fakeRecorder struct {
	uploads   []string
	downloads []string
	removals  []string
}

func (r *fakeRecorder) Upload(result string, _ int64) { r.uploads = append(r.uploads, result) }
func (r *fakeRecorder) Download(result string)        { r.downloads = append(r.downloads, result) }
func (r *fakeRecorder) Remove(result string)          { r.removals = append(r.removals, result) }

type fixture struct {
	svc      *FileService
	layout   *storage.Layout
	transfer *fakeTransfer
	root     string
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "files")
	layout, err := storage.NewLayout(root)
	require.NoError(t, err)
	c, err := cache.New(16, layout.Scan)
	require.NoError(t, err)
	tr := newFakeTransfer()
	return &fixture{
		svc:      NewFileService(layout, c, tr, limits, logging.Nop()),
		layout:   layout,
		transfer: tr,
		root:     root,
	}
}

func (fx *fixture) upload(t *testing.T, userID models.UserID, name string, size int) (models.FileRecord, error) {
	t.Helper()
	id := name + "-id"
	fx.transfer.content[id] = bytes.Repeat([]byte("x"), size)
	return fx.svc.Upload(context.Background(), userID, models.IncomingFile{ID: id, Name: name, Size: int64(size)})
}

func (fx *fixture) stagingEmpty(t *testing.T) bool {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(fx.layout.Root(), ".staging"))
	require.NoError(t, err)
	return len(entries) == 0
}

func names(recs []models.FileRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

// --- tests ---

func TestNewFileService_DefaultLimits(t *testing.T) {
	fx := newFixture(t, Limits{})
	assert.Equal(t, DefaultLimits(), fx.svc.Limits())
	assert.Equal(t, 4*common.MiB, fx.svc.Limits().MaxFileSize)
	assert.Equal(t, 50*common.MiB, fx.svc.Limits().MaxUserStorage)
}

func TestUploadListRemove_Scenario(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	ctx := context.Background()

	_, err := fx.upload(t, 1, "a.txt", 100)
	require.NoError(t, err)
	_, err = fx.upload(t, 1, "b.txt", 200)
	require.NoError(t, err)

	list, err := fx.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names(list))

	usage, err := fx.svc.Usage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), usage)

	removed, err := fx.svc.Remove(ctx, 1, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(100), removed.Size)

	usage, err = fx.svc.Usage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), usage)

	list, err = fx.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, names(list))
}

func TestUpload_ListAfterWarmCacheAppends(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	ctx := context.Background()

	list, err := fx.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	rec, err := fx.upload(t, 1, "a.txt", 10)
	require.NoError(t, err)

	list, err = fx.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.FileRecord{rec}, list)
	assert.Equal(t, filepath.Join(fx.layout.Root(), "1", "a.txt"), rec.Path)
}

func TestUpload_MissingName(t *testing.T) {
	fx := newFixture(t, DefaultLimits())

	for _, name := range []string{"", "   ", "..", "/"} {
		_, err := fx.svc.Upload(context.Background(), 1, models.IncomingFile{ID: "x", Name: name, Size: 1})
		assert.ErrorIs(t, err, common.ErrMissingName, "name %q", name)
	}
	assert.Zero(t, fx.transfer.fetches)
}

func TestUpload_SanitizesName(t *testing.T) {
	fx := newFixture(t, DefaultLimits())

	rec, err := fx.upload(t, 1, "../../etc/passwd", 3)
	require.NoError(t, err)
	assert.Equal(t, "passwd", rec.Name)
	assert.Equal(t, filepath.Join(fx.layout.Root(), "1", "passwd"), rec.Path)
}

func TestUpload_DeclaredSizeExceeded_NoTransferNoFile(t *testing.T) {
	fx := newFixture(t, DefaultLimits())

	_, err := fx.svc.Upload(context.Background(), 1, models.IncomingFile{ID: "big", Name: "big.bin", Size: 4*common.MiB + 1})
	require.ErrorIs(t, err, common.ErrSizeExceeded)

	assert.Zero(t, fx.transfer.fetches, "no bandwidth wasted")
	_, statErr := os.Stat(filepath.Join(fx.layout.Root(), "1", "big.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpload_ActualSizeExceeded(t *testing.T) {
	fx := newFixture(t, Limits{MaxFileSize: 10, MaxUserStorage: 100})

	fx.transfer.content["lie"] = make([]byte, 11)
	_, err := fx.svc.Upload(context.Background(), 1, models.IncomingFile{ID: "lie", Name: "lie.bin", Size: 5})
	require.ErrorIs(t, err, common.ErrSizeExceeded)
	assert.True(t, fx.stagingEmpty(t))
}

func TestUpload_QuotaExceeded_RemovesFile(t *testing.T) {
	fx := newFixture(t, Limits{MaxFileSize: 100, MaxUserStorage: 250})

	_, err := fx.upload(t, 1, "a.txt", 100)
	require.NoError(t, err)
	_, err = fx.upload(t, 1, "b.txt", 100)
	require.NoError(t, err)

	_, err = fx.upload(t, 1, "c.txt", 51)
	require.ErrorIs(t, err, common.ErrQuotaExceeded)

	_, statErr := os.Stat(filepath.Join(fx.layout.Root(), "1", "c.txt"))
	assert.True(t, os.IsNotExist(statErr), "over-quota file must not stay on disk")
	assert.True(t, fx.stagingEmpty(t))

	usage, err := fx.svc.Usage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), usage)

	// exactly at the ceiling is fine
	_, err = fx.upload(t, 1, "c.txt", 50)
	require.NoError(t, err)
}

func TestUpload_QuotaIsPerUser(t *testing.T) {
	fx := newFixture(t, Limits{MaxFileSize: 100, MaxUserStorage: 100})

	_, err := fx.upload(t, 1, "a.txt", 100)
	require.NoError(t, err)
	_, err = fx.upload(t, 2, "a.txt", 100)
	require.NoError(t, err)
}

func TestUpload_OverwriteReplacesAndCountsOnce(t *testing.T) {
	fx := newFixture(t, Limits{MaxFileSize: 100, MaxUserStorage: 150})
	ctx := context.Background()

	_, err := fx.svc.List(ctx, 1)
	require.NoError(t, err)

	_, err = fx.upload(t, 1, "a.txt", 100)
	require.NoError(t, err)
	// replacing a.txt frees its 100 bytes first
	_, err = fx.upload(t, 1, "a.txt", 90)
	require.NoError(t, err)

	list, err := fx.svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(90), list[0].Size)

	usage, err := fx.svc.Usage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(90), usage)
}

func TestUpload_TransferError_LeavesNothing(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	fx.transfer.fetchErr = errors.New("connection reset")
	fx.transfer.partial = 64

	_, err := fx.svc.Upload(context.Background(), 1, models.IncomingFile{ID: "x", Name: "x.txt", Size: 128})
	require.ErrorIs(t, err, common.ErrTransfer)
	assert.Contains(t, err.Error(), "connection reset")

	assert.True(t, fx.stagingEmpty(t))
	usage, err := fx.svc.Usage(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, usage)
}

func TestUpload_ReplicaFailureDoesNotFailUpload(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	rep := &fakeReplica{err: errors.New("s3 down")}
	fx.svc.SetReplicator(rep)

	_, err := fx.upload(t, 1, "a.txt", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, rep.puts)

	_, err = fx.svc.Remove(context.Background(), 1, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, rep.deletes)
}

func TestDownload(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	ctx := context.Background()

	_, err := fx.upload(t, 1, "a.txt", 5)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Download(ctx, 1, "a.txt"))
	assert.Equal(t, []byte("xxxxx"), fx.transfer.sent["a.txt"])
}

func TestDownload_NotFoundWithoutSideEffects(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	ctx := context.Background()

	err := fx.svc.Download(ctx, 1, "missing.txt")
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = fx.svc.Download(ctx, 1, "../2/a.txt")
	require.ErrorIs(t, err, common.ErrorNotFound)

	assert.Empty(t, fx.transfer.sent)
	_, statErr := os.Stat(filepath.Join(fx.layout.Root(), "1"))
	assert.True(t, os.IsNotExist(statErr), "download must not create the user directory")
}

func TestDownload_SendFailureFoldsIntoNotFound(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	_, err := fx.upload(t, 1, "a.txt", 5)
	require.NoError(t, err)

	fx.transfer.sendErr = errors.New("bot blocked")
	err = fx.svc.Download(context.Background(), 1, "a.txt")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRemove_NotFound(t *testing.T) {
	fx := newFixture(t, DefaultLimits())

	_, err := fx.svc.Remove(context.Background(), 1, "nope.txt")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRemove_ColdCacheThenList(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	ctx := context.Background()

	dir, err := fx.layout.DirectoryFor(1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 7), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), make([]byte, 3), 0o600))

	_, err = fx.svc.Remove(ctx, 1, "a.txt")
	require.NoError(t, err)

	list, err := fx.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, names(list))
}

func TestRecorder_ResultLabels(t *testing.T) {
	fx := newFixture(t, Limits{MaxFileSize: 10, MaxUserStorage: 10})
	rec := &fakeRecorder{}
	fx.svc.SetRecorder(rec)
	ctx := context.Background()

	_, _ = fx.upload(t, 1, "a.txt", 10)
	_, _ = fx.upload(t, 1, "b.txt", 5)
	_, _ = fx.svc.Upload(ctx, 1, models.IncomingFile{Name: ""})
	_, _ = fx.svc.Upload(ctx, 1, models.IncomingFile{Name: "c", Size: 11})
	_ = fx.svc.Download(ctx, 1, "zzz")
	_, _ = fx.svc.Remove(ctx, 1, "a.txt")

	assert.Equal(t, []string{"ok", "quota_exceeded", "missing_name", "size_exceeded"}, rec.uploads)
	assert.Equal(t, []string{"not_found"}, rec.downloads)
	assert.Equal(t, []string{"ok"}, rec.removals)
}

func TestResultLabel_Unknown(t *testing.T) {
	assert.Equal(t, "error", resultLabel(errors.New("disk on fire")))
	assert.Equal(t, "transfer_error", resultLabel(common.ErrTransfer))
}

func TestUpload_CommitFailureDropsCachedListing(t *testing.T) {
	fx := newFixture(t, DefaultLimits())
	ctx := context.Background()

	_, err := fx.upload(t, 1, "b.txt", 10)
	require.NoError(t, err)
	_, err = fx.svc.List(ctx, 1)
	require.NoError(t, err)

	dir, err := fx.layout.DirectoryFor(1)
	require.NoError(t, err)
	// written behind the cache's back
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("c"), 0o600))
	// a non-empty directory cannot be replaced by a file
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a.txt", "inner"), 0o700))

	_, err = fx.upload(t, 1, "a.txt", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit a.txt")
	assert.True(t, fx.stagingEmpty(t))

	list, err := fx.svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "c.txt"}, names(list))
}
