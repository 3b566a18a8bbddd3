// Package metrics exposes Prometheus counters for the bot and the storage
// core.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/ezfile/internal/logging"
)

const namespace = "ezfile"

// Metrics tracks upload outcomes, file operations, gate activity and
// directory cache effectiveness.
type Metrics struct {
	uploads     *prometheus.CounterVec
	downloads   *prometheus.CounterVec
	removals    *prometheus.CounterVec
	uploadBytes prometheus.Counter
	gateArms    prometheus.Counter
	gateExpired prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// New returns the process-wide recorder bound to the default registry.
func New() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return defaultMetrics
}

// NewWithRegistry allows tests to provide a dedicated registry.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploads_total",
			Help:      "Upload attempts by result",
		}, []string{"result"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "downloads_total",
			Help:      "Download attempts by result",
		}, []string{"result"}),
		removals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "removals_total",
			Help:      "Removal attempts by result",
		}, []string{"result"}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes accepted into user storage",
		}),
		gateArms: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "arms_total",
			Help:      "Number of upload windows opened",
		}),
		gateExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "expired_total",
			Help:      "Number of upload windows that closed without a file",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Directory listings served from memory",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Directory listings that required a disk scan",
		}),
		registerer: reg,
		gatherer:   g,
	}
}

func (m *Metrics) Upload(result string, bytes int64) {
	m.uploads.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) Download(result string) { m.downloads.WithLabelValues(result).Inc() }
func (m *Metrics) Remove(result string)   { m.removals.WithLabelValues(result).Inc() }
func (m *Metrics) GateArmed()             { m.gateArms.Inc() }
func (m *Metrics) GateExpired()           { m.gateExpired.Inc() }
func (m *Metrics) CacheHit()              { m.cacheHits.Inc() }
func (m *Metrics) CacheMiss()             { m.cacheMisses.Inc() }

// TrackCachedUsers exports the number of users with a cached listing. Only the
// first registration on a registry takes effect.
func (m *Metrics) TrackCachedUsers(size func() int) {
	err := m.registerer.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "users",
		Help:      "Users whose directory listing is held in memory",
	}, func() float64 { return float64(size()) }))
	var are prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &are) {
		panic(err)
	}
}

// Handler serves the metrics of this recorder's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	logger = logging.OrNop(logger).With("module", "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	listen, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Stopping metrics server...")
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
	}()

	logger.Info(ctx, "Starting metrics server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
