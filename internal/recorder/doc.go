// Package recorder persists stream session lifecycle events.
//
// The recorder consumes the viewer manager's event channel and batch-inserts
// rows into the stream_events table (append-only, never update). Batches
// flush when full or on a timer, whichever comes first. With no database
// pool configured the recorder drains its input and drops rows, so the
// viewer runs unchanged with recording disabled.
package recorder
