package server

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/metrics"
	"github.com/dmitrijs2005/ezfile/internal/replica"
	"github.com/dmitrijs2005/ezfile/internal/server/config"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
	"github.com/dmitrijs2005/ezfile/internal/server/services"
)

type stubTransfer struct{}

func (stubTransfer) Fetch(_ context.Context, f models.IncomingFile, w io.Writer) error {
	_, err := w.Write(make([]byte, f.Size))
	return err
}

func (stubTransfer) Send(context.Context, models.UserID, string, io.Reader) error { return nil }

type stubReplica struct {
	puts int
}

func (r *stubReplica) Put(context.Context, models.UserID, models.FileRecord) error {
	r.puts++
	return nil
}

func (r *stubReplica) Delete(context.Context, models.UserID, string) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.StorageRoot = filepath.Join(t.TempDir(), "files")
	c.BotToken = "test"
	c.HealthAddrGRPC = ""
	c.MetricsAddr = ""
	return c
}

func TestNewCore(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSize = 10
	cfg.MaxUserStorage = 20

	core, err := NewCore(context.Background(), cfg, stubTransfer{}, nil, logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, services.Limits{MaxFileSize: 10, MaxUserStorage: 20}, core.Files.Limits())
	assert.Equal(t, cfg.UploadWindow, core.Gate.Window())
	assert.DirExists(t, core.Layout.Root())
}

func TestNewCore_WithReplicaAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3Bucket = "mirror"

	rep := &stubReplica{}
	var got replica.Config
	orig := newReplica
	t.Cleanup(func() { newReplica = orig })
	newReplica = func(_ context.Context, c replica.Config) (services.Replicator, error) {
		got = c
		return rep, nil
	}

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	core, err := NewCore(context.Background(), cfg, stubTransfer{}, m, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, "mirror", got.Bucket)
	assert.Equal(t, cfg.S3Region, got.Region)

	_, err = core.Files.Upload(context.Background(), 1, models.IncomingFile{ID: "x", Name: "a.txt", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.puts)
}

func TestNewCore_ReplicaError(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3Bucket = "mirror"

	orig := newReplica
	t.Cleanup(func() { newReplica = orig })
	newReplica = func(context.Context, replica.Config) (services.Replicator, error) {
		return nil, errors.New("no credentials")
	}

	_, err := NewCore(context.Background(), cfg, stubTransfer{}, nil, logging.Nop())
	assert.ErrorContains(t, err, "replica init")
}

func TestNewCore_BadRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageRoot = " "
	_, err := NewCore(context.Background(), cfg, stubTransfer{}, nil, logging.Nop())
	assert.Error(t, err)
}
