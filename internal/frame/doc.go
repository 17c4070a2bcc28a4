// Package frame implements the single-frame buffer used by stream sessions.
//
// A session displays exactly one frame at a time. Receiving frame N+1 must
// release frame N's buffer, but only after N+1 is ready and before any
// observer can see N+1. The Store enforces that ordering and recycles
// buffers through a sync.Pool so a long-lived stream holds a bounded
// amount of memory.
package frame
