package recorder

import (
	"time"
)

// Config contains configuration for the event recorder.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// eventRow represents a row to be inserted into the stream_events table.
type eventRow struct {
	UnitID     string
	SessionID  string // UUID
	EventType  string
	State      string
	CloseCode  int   // 0 unless the event is a close
	Attempt    int   // 0 unless the event is a scheduled retry
	DelayMs    int64 // 0 unless the event is a scheduled retry
	OccurredAt int64 // Microseconds
	RecordedAt int64 // Microseconds
}

// Metrics holds counters for the recorder.
type Metrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}
