package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/ezfile/internal/cache"
	"github.com/dmitrijs2005/ezfile/internal/gate"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/metrics"
	"github.com/dmitrijs2005/ezfile/internal/replica"
	"github.com/dmitrijs2005/ezfile/internal/server/config"
	"github.com/dmitrijs2005/ezfile/internal/server/services"
	"github.com/dmitrijs2005/ezfile/internal/storage"
)

// newReplica is a seam for tests; it builds the S3 mirror.
var newReplica = func(ctx context.Context, c replica.Config) (services.Replicator, error) {
	return replica.NewS3Replica(ctx, c)
}

// Core is the transport-independent part of the process: storage layout,
// directory cache, file service and upload gate.
type Core struct {
	Layout *storage.Layout
	Cache  *cache.DirCache
	Files  *services.FileService
	Gate   *gate.Gate
}

// NewCore builds the storage core. transfer moves bytes for the chosen
// transport; m may be nil.
func NewCore(ctx context.Context, cfg *config.Config, transfer services.Transfer, m *metrics.Metrics, logger logging.Logger) (*Core, error) {
	layout, err := storage.NewLayout(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	dc, err := cache.New(cfg.CacheSize, layout.Scan)
	if err != nil {
		return nil, err
	}

	files := services.NewFileService(layout, dc, transfer, services.Limits{
		MaxFileSize:    cfg.MaxFileSize,
		MaxUserStorage: cfg.MaxUserStorage,
	}, logger)

	if m != nil {
		dc.SetObserver(m)
		m.TrackCachedUsers(dc.Len)
		files.SetRecorder(m)
	}

	if cfg.ReplicaEnabled() {
		r, err := newReplica(ctx, replica.Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("replica init: %w", err)
		}
		files.SetReplicator(r)
		logging.OrNop(logger).Info(ctx, "replica enabled", "bucket", cfg.S3Bucket)
	}

	return &Core{
		Layout: layout,
		Cache:  dc,
		Files:  files,
		Gate:   gate.New(cfg.UploadWindow),
	}, nil
}
