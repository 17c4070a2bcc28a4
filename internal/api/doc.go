// Package api provides the REST client for the APIS server.
//
// Endpoints used:
//   - GET /api/units      - list detection units for the tenant
//   - GET /api/units/{id} - fetch a single unit
//
// Responses arrive in the server's {"data": ...} envelope. Streaming goes
// over a separate websocket endpoint handled by the stream package.
package api
