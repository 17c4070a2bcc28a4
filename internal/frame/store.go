package frame

import (
	"sync"
	"time"
)

// Frame is one decoded image payload from a stream, backed by a pooled buffer.
// A Frame is only valid while it is the Store's current frame; callers must
// not retain the byte slice outside a View call.
type Frame struct {
	buf []byte
	at  time.Time
}

// Bytes returns the frame payload.
func (f *Frame) Bytes() []byte {
	return f.buf
}

// ReceivedAt returns the local receive timestamp.
func (f *Frame) ReceivedAt() time.Time {
	return f.at
}

// Store holds at most one current frame per stream session. Publishing a new
// frame releases the previous frame's buffer back to the pool only after the
// new one is in place, so observers never see a gap and buffers never
// accumulate.
type Store struct {
	mu   sync.RWMutex
	cur  *Frame
	pool sync.Pool

	held     int64
	acquired int64
	released int64
}

// NewStore creates an empty frame store.
func NewStore() *Store {
	s := &Store{}
	s.pool.New = func() any {
		return &Frame{buf: make([]byte, 0, 64*1024)}
	}
	return s
}

// Acquire copies data into a pooled frame, ready for display.
func (s *Store) Acquire(data []byte, at time.Time) *Frame {
	f := s.pool.Get().(*Frame)
	f.buf = append(f.buf[:0], data...)
	f.at = at

	s.mu.Lock()
	s.held++
	s.acquired++
	s.mu.Unlock()

	return f
}

// Publish makes f the current frame. The previous frame is released before
// any observer can see f, and exactly once.
func (s *Store) Publish(f *Frame) {
	s.mu.Lock()
	prev := s.cur
	s.cur = f
	if prev != nil {
		s.releaseLocked(prev)
	}
	s.mu.Unlock()
}

// View calls fn with the current frame's payload under the store lock.
// Returns false if no frame is held. fn must not retain the slice.
func (s *Store) View(fn func(data []byte, at time.Time)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cur == nil {
		return false
	}
	fn(s.cur.buf, s.cur.at)
	return true
}

// LastReceivedAt returns the current frame's timestamp, zero if none.
func (s *Store) LastReceivedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cur == nil {
		return time.Time{}
	}
	return s.cur.at
}

// Clear releases the current frame, if any. Safe to call repeatedly.
func (s *Store) Clear() {
	s.mu.Lock()
	if s.cur != nil {
		s.releaseLocked(s.cur)
		s.cur = nil
	}
	s.mu.Unlock()
}

// Held returns the number of frame buffers currently checked out.
func (s *Store) Held() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.held
}

// Stats returns lifetime acquire/release counts.
func (s *Store) Stats() (acquired, released int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acquired, s.released
}

func (s *Store) releaseLocked(f *Frame) {
	s.held--
	s.released++
	f.buf = f.buf[:0]
	f.at = time.Time{}
	s.pool.Put(f)
}
