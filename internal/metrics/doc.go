// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Stream session counts and per-unit frame rates
//   - Reconnect scheduling and exhausted-retry failures
//   - Frame payload size distribution
//   - Recorder backpressure drops
package metrics
