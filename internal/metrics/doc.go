// Package metrics provides the observability hooks for assetbuilder pipelines.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics can be collected without nil checks:
//
//	cache := pipeline.NewCache(pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The Prometheus implementation is exposed over HTTP via HTTPHandler (used by the
// serve and watch commands when a metrics address is configured).
package metrics
