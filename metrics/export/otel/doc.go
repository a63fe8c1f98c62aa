// Package otel publishes authflow metrics through an OpenTelemetry
// [metric.Meter]. Each counter becomes an Int64ObservableCounter and each
// histogram bucket an Int64ObservableGauge, all fed by one callback that
// reads a metrics snapshot per collection.
//
// The caller owns the MeterProvider.
package otel
