package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivewarden/apis-viewer/internal/stream"
)

// EventRecorder consumes stream lifecycle events and writes them to the
// stream_events table in batches.
type EventRecorder struct {
	cfg    Config
	logger *slog.Logger

	// Input from the viewer manager
	input <-chan stream.Event

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Metrics
}

// NewEventRecorder creates a new EventRecorder.
func NewEventRecorder(
	cfg Config,
	input <-chan stream.Event,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (r *EventRecorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	// Consumer goroutine
	r.wg.Add(1)
	go r.consumeLoop()

	// Flush ticker goroutine
	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("event recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder.
func (r *EventRecorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping event recorder")

	if r.cancel != nil {
		r.cancel()
	}

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("event recorder stop timed out")
	}

	// Final flush
	r.flush()

	return nil
}

// Stats returns current metrics.
func (r *EventRecorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// consumeLoop reads from the input channel and accumulates batches.
func (r *EventRecorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-r.input:
			if !ok {
				return
			}
			r.handleEvent(ev)
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *EventRecorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (r *EventRecorder) handleEvent(ev stream.Event) {
	row := r.transform(ev)

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush()
	}
}

// transform converts a stream.Event to an eventRow.
func (r *EventRecorder) transform(ev stream.Event) eventRow {
	return eventRow{
		UnitID:     ev.UnitID,
		SessionID:  ev.SessionID.String(),
		EventType:  string(ev.Type),
		State:      string(ev.State),
		CloseCode:  ev.CloseCode,
		Attempt:    ev.Attempt,
		DelayMs:    ev.Delay.Milliseconds(),
		OccurredAt: ev.At.UnixMicro(),
		RecordedAt: time.Now().UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (r *EventRecorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]eventRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	if r.db == nil {
		// Recording disabled, drop silently
		return
	}

	start := time.Now()

	if err := r.batchInsert(batch); err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch))
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed stream events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch. Rows are append-only.
func (r *EventRecorder) batchInsert(rows []eventRow) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO stream_events (unit_id, session_id, event_type, state, close_code, attempt, delay_ms, occurred_at, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, row.UnitID, row.SessionID, row.EventType, row.State, row.CloseCode, row.Attempt, row.DelayMs, row.OccurredAt, row.RecordedAt)
	}

	results := r.db.SendBatch(r.ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
