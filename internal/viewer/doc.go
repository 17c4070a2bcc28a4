// Package viewer supervises live stream sessions across the unit fleet.
//
// The manager consumes unit registry change events and keeps exactly one
// stream session per online unit:
//   - unit discovered online, or transitions to online: start a session
//   - unit leaves online, or is removed: stop and discard its session
//
// Session lifecycle events from every session are fanned into a single
// channel for downstream consumers such as the recorder. The manager also
// exposes session snapshots, per-unit manual retry, and frame views for
// the HTTP layer.
package viewer
