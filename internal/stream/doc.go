// Package stream implements the live-stream session for detection units.
//
// A Session:
//   - Owns at most one websocket transport to /ws/stream/{unitId}
//   - Retries abnormal closes with exponential backoff (1s base, x2, 4 retries)
//   - Holds exactly one current frame, recycling previous frame buffers
//   - Surfaces terminal states (failed, closed) for the caller's display;
//     no transport error escapes as anything but state
package stream
