// Package prometheus renders authflow counters in Prometheus text format.
//
// [NewPrometheusExporter] reads an [authflow.Client] and exposes an
// [http.Handler]. Counter names are prefixed authflow_*_total; the single
// histogram is authflow_gateway_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
