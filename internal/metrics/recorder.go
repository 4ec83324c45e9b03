package metrics

import "time"

// CacheResult enumerates pipeline cache lookups for counters.
type CacheResult string

const (
	CacheHit  CacheResult = "hit"
	CacheMiss CacheResult = "miss"
)

// FetchSource distinguishes local file reads from remote retrievals.
type FetchSource string

const (
	SourceLocal  FetchSource = "local"
	SourceRemote FetchSource = "remote"
)

// Recorder defines observability hooks for pipeline metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil receivers
// when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObservePipelineDuration(assetType string, d time.Duration)
	IncCacheResult(assetType string, result CacheResult)
	IncFetchResult(source FetchSource, success bool)
	ObserveBundleSize(assetType string, bytes int)
	IncCompressionFailure(assetType string)
	IncNotifyFailure()
	IncFlushResult(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePipelineDuration(string, time.Duration) {}
func (NoopRecorder) IncCacheResult(string, CacheResult)            {}
func (NoopRecorder) IncFetchResult(FetchSource, bool)              {}
func (NoopRecorder) ObserveBundleSize(string, int)                 {}
func (NoopRecorder) IncCompressionFailure(string)                  {}
func (NoopRecorder) IncNotifyFailure()                             {}
func (NoopRecorder) IncFlushResult(bool)                           {}
