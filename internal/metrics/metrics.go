// Package metrics holds the Prometheus collectors exported by the
// player daemon at /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signloop/signloop/pkg/looplib"
)

// Metrics holds all the player metrics.
type Metrics struct {
	// Sync cycle metrics
	SyncCyclesTotal       *prometheus.CounterVec
	OfflineFallbacksTotal prometheus.Counter
	LastSyncTime          prometheus.Gauge

	// Download metrics
	DownloadsTotal     *prometheus.CounterVec
	DownloadBytesTotal prometheus.Counter

	// Playback metrics
	PlaysTotal    *prometheus.CounterVec
	ProgramAssets prometheus.Gauge

	// Cache metrics
	CacheBytes prometheus.Gauge
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates the Metrics instance and registers every collector
// with the default registry. Repeated calls return the same instance.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		SyncCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signloop_sync_cycles_total",
			Help: "Total number of completed sync cycles",
		}, []string{"result"}),

		OfflineFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signloop_offline_fallbacks_total",
			Help: "Total number of cycles that fell back to cached content",
		}),

		LastSyncTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signloop_last_sync_timestamp_seconds",
			Help: "Unix time of the last cycle that applied endpoint content",
		}),

		DownloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signloop_downloads_total",
			Help: "Total number of asset downloads",
		}, []string{"result"}),

		DownloadBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signloop_download_bytes_total",
			Help: "Total bytes downloaded into the asset cache",
		}),

		PlaysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signloop_plays_total",
			Help: "Total number of resolved showings",
		}, []string{"result"}),

		ProgramAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signloop_program_assets",
			Help: "Number of assets in the program currently in rotation",
		}),

		CacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signloop_cache_bytes",
			Help: "Bytes of media currently in the asset cache",
		}),
	}

	registerMetrics(m)
	globalMetrics = m

	return m
}

// registerMetrics registers all metrics with the default registry
func registerMetrics(m *Metrics) {
	// Try to register each metric, ignore if already registered
	registerOrGet(m.SyncCyclesTotal)
	registerOrGet(m.OfflineFallbacksTotal)
	registerOrGet(m.LastSyncTime)
	registerOrGet(m.DownloadsTotal)
	registerOrGet(m.DownloadBytesTotal)
	registerOrGet(m.PlaysTotal)
	registerOrGet(m.ProgramAssets)
	registerOrGet(m.CacheBytes)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// CycleApplied records a cycle that put endpoint content on screen.
func (m *Metrics) CycleApplied(assetCount int) {
	m.SyncCyclesTotal.WithLabelValues("applied").Inc()
	m.ProgramAssets.Set(float64(assetCount))
	m.LastSyncTime.SetToCurrentTime()
}

// CycleFailed records a failed cycle.
func (m *Metrics) CycleFailed() {
	m.SyncCyclesTotal.WithLabelValues("failed").Inc()
}

// CycleOffline records a cycle that ran without connectivity.
func (m *Metrics) CycleOffline() {
	m.SyncCyclesTotal.WithLabelValues("offline").Inc()
	m.OfflineFallbacksTotal.Inc()
}

// DownloadComplete records one finished asset download.
func (m *Metrics) DownloadComplete(size int64) {
	m.DownloadsTotal.WithLabelValues("ok").Inc()
	if size > 0 {
		m.DownloadBytesTotal.Add(float64(size))
	}
}

// DownloadFailed records one failed asset download.
func (m *Metrics) DownloadFailed() {
	m.DownloadsTotal.WithLabelValues("failed").Inc()
}

// PlayResolved records the outcome of one showing.
func (m *Metrics) PlayResolved(result looplib.PlayResult) {
	m.PlaysTotal.WithLabelValues(string(result)).Inc()
}
