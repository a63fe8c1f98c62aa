// Package prometheus renders authflow metrics in the Prometheus text
// exposition format. Counters are named authflow_*_total and the backend
// latency histogram is authflow_backend_latency_seconds.
//
// Nothing is registered globally; callers mount [Exporter.Handler].
package prometheus
