package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once                sync.Once
	pipelineDuration    *prom.HistogramVec
	cacheResults        *prom.CounterVec
	fetchResults        *prom.CounterVec
	bundleSize          *prom.HistogramVec
	compressionFailures *prom.CounterVec
	notifyFailures      prom.Counter
	flushResults        *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.pipelineDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "assetbuilder",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of pipeline calls (hits and builds)",
			Buckets:   prom.DefBuckets,
		}, []string{"asset_type"})
		pr.cacheResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "pipeline_cache_results_total",
			Help:      "Pipeline cache lookups by result",
		}, []string{"asset_type", "result"})
		pr.fetchResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "fetch_results_total",
			Help:      "Asset fetches by source and outcome",
		}, []string{"source", "result"})
		pr.bundleSize = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "assetbuilder",
			Name:      "bundle_size_bytes",
			Help:      "Size of freshly built bundles",
			Buckets:   prom.ExponentialBuckets(1024, 4, 8),
		}, []string{"asset_type"})
		pr.compressionFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "compression_failures_total",
			Help:      "Gzip sibling failures (primary artifact kept)",
		}, []string{"asset_type"})
		pr.notifyFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "notify_failures_total",
			Help:      "Notifier hook failures",
		})
		pr.flushResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "flush_results_total",
			Help:      "Pipeline directory purges by outcome",
		}, []string{"result"})
		reg.MustRegister(pr.pipelineDuration, pr.cacheResults, pr.fetchResults, pr.bundleSize, pr.compressionFailures, pr.notifyFailures, pr.flushResults)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePipelineDuration(assetType string, d time.Duration) {
	if p == nil || p.pipelineDuration == nil {
		return
	}
	p.pipelineDuration.WithLabelValues(assetType).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCacheResult(assetType string, result CacheResult) {
	if p == nil || p.cacheResults == nil {
		return
	}
	p.cacheResults.WithLabelValues(assetType, string(result)).Inc()
}

func (p *PrometheusRecorder) IncFetchResult(source FetchSource, success bool) {
	if p == nil || p.fetchResults == nil {
		return
	}
	p.fetchResults.WithLabelValues(string(source), resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) ObserveBundleSize(assetType string, bytes int) {
	if p == nil || p.bundleSize == nil {
		return
	}
	p.bundleSize.WithLabelValues(assetType).Observe(float64(bytes))
}

func (p *PrometheusRecorder) IncCompressionFailure(assetType string) {
	if p == nil || p.compressionFailures == nil {
		return
	}
	p.compressionFailures.WithLabelValues(assetType).Inc()
}

func (p *PrometheusRecorder) IncNotifyFailure() {
	if p == nil || p.notifyFailures == nil {
		return
	}
	p.notifyFailures.Inc()
}

func (p *PrometheusRecorder) IncFlushResult(success bool) {
	if p == nil || p.flushResults == nil {
		return
	}
	p.flushResults.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
