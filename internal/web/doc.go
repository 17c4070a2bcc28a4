// Package web exposes the viewer's local HTTP surface.
//
// Routes:
//   - GET  /health                      liveness and version
//   - GET  /metrics                     Prometheus metrics (path configurable)
//   - GET  /api/streams                 all session snapshots
//   - GET  /api/streams/{id}            one session snapshot
//   - POST /api/streams/{id}/retry      manual retry for a failed session
//   - GET  /streams/{id}/mjpeg          live frames as multipart/x-mixed-replace
//
// JSON responses wrap payloads in a {"data": ...} envelope; errors use
// {"error": ...}.
package web
