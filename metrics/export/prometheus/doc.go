// Package prometheus exposes goRotate engine metrics as a client_golang
// Collector.
//
// Counters are named gorotate_*_total; the single histogram is
// gorotate_validate_latency_seconds. [Handler] mounts the collector on its own
// registry so callers decide whether to share the default one.
package prometheus
