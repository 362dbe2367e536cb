// Package otel publishes goRotate engine metrics through an OpenTelemetry
// meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per histogram bucket. The caller owns the
// MeterProvider.
package otel
