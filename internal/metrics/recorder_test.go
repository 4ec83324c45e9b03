package metrics

import (
	"sync"
	"testing"
	"time"
)

// countingRecorder is a Recorder used to verify call sites in other packages' tests.
type countingRecorder struct {
	mu       sync.Mutex
	hits     int
	misses   int
	fetches  map[FetchSource]int
	failures int
}

func (c *countingRecorder) ObservePipelineDuration(string, time.Duration) {}
func (c *countingRecorder) IncCacheResult(_ string, r CacheResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r == CacheHit {
		c.hits++
	} else {
		c.misses++
	}
}
func (c *countingRecorder) IncFetchResult(s FetchSource, _ bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetches == nil {
		c.fetches = map[FetchSource]int{}
	}
	c.fetches[s]++
}
func (c *countingRecorder) ObserveBundleSize(string, int) {}
func (c *countingRecorder) IncCompressionFailure(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}
func (c *countingRecorder) IncNotifyFailure()   {}
func (c *countingRecorder) IncFlushResult(bool) {}

func TestRecorderInterfaceSatisfied(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = (*PrometheusRecorder)(nil)
	var _ Recorder = (*countingRecorder)(nil)

	r := &countingRecorder{}
	r.IncCacheResult("css", CacheMiss)
	r.IncCacheResult("css", CacheHit)
	r.IncFetchResult(SourceLocal, true)
	if r.hits != 1 || r.misses != 1 || r.fetches[SourceLocal] != 1 {
		t.Fatalf("unexpected counts: %+v", r)
	}
}
