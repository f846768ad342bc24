// Package telemetry reports call usage through Prometheus metrics.
//
// Reporter implements the call.Telemetry interface: lifecycle events count
// into a per-event counter, finished call durations feed a histogram, and the
// remote party's advertised tool version is exposed as a labeled info gauge.
// All methods are fire-and-forget; a Reporter never fails a call operation.
package telemetry
