// Package units implements the Unit Registry component.
//
// The registry:
//   - Syncs the detection unit list from the APIS server REST API
//   - Reconciles on a fixed interval
//   - Emits UnitChange events (discovered, status_change, removed)
//     consumed by the viewer manager to start and stop stream sessions
package units
