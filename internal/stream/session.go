package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivewarden/apis-viewer/internal/frame"
	"github.com/hivewarden/apis-viewer/internal/metrics"
)

// Session manages one logical stream for a unit: transport lifecycle,
// exponential-backoff retry, and the current-frame buffer.
//
// Transport events and retry timers all funnel into methods that hold the
// session mutex, so transitions are strictly ordered by event arrival. Each
// connection attempt bumps a generation counter; events carrying a stale
// generation belong to a superseded transport and are discarded.
type Session struct {
	cfg    SessionConfig
	id     uuid.UUID
	dialer Dialer
	logger *slog.Logger
	frames *frame.Store

	// newTimer schedules retry timers; tests swap in a manual clock.
	newTimer TimerFunc

	mu         sync.Mutex
	state      State
	retries    int
	gen        int
	transport  Transport
	retryTimer Timer
	stopped    bool

	framesSeen  int64
	lastFrameAt time.Time
}

// NewSession creates a session. It does not connect until Start.
func NewSession(cfg SessionConfig, dialer Dialer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = InitialRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}

	id := uuid.New()
	return &Session{
		cfg:    cfg,
		id:     id,
		dialer: dialer,
		logger: logger.With("unit_id", cfg.UnitID, "session_id", id),
		frames: frame.NewStore(),
		newTimer: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
		state: StateIdle,
	}
}

// Start begins the connection attempt for an online unit. For any other
// unit status no transport is created and the session stays idle, which is
// the caller's static "unavailable" display. Returns ErrInvalidUnit for an
// empty unit id.
func (s *Session) Start() error {
	if s.cfg.UnitID == "" {
		return ErrInvalidUnit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if !s.cfg.UnitStatus.Streamable() {
		s.logger.Info("unit not online, stream unavailable", "status", s.cfg.UnitStatus)
		return nil
	}

	s.dialLocked()
	return nil
}

// Retry resets the retry counter and reconnects. Only valid from failed.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.state != StateFailed {
		return ErrNotFailed
	}

	s.retries = 0
	metrics.ManualRetriesTotal.WithLabelValues(s.cfg.UnitID).Inc()
	s.dialLocked()
	return nil
}

// Stop tears the session down: cancels any pending retry timer, closes the
// active transport, and releases the current frame. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.gen++ // in-flight dials and transport events are now stale

	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	t := s.transport
	s.transport = nil
	s.setStateLocked(StateIdle, Event{Type: EventStopped})
	s.mu.Unlock()

	if t != nil {
		t.Close()
	}
	s.frames.Clear()
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UnitID returns the session's unit identifier.
func (s *Session) UnitID() string {
	return s.cfg.UnitID
}

// Info returns a snapshot for display callers.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		UnitID:      s.cfg.UnitID,
		SessionID:   s.id,
		State:       s.state,
		RetryCount:  s.retries,
		FramesSeen:  s.framesSeen,
		LastFrameAt: s.lastFrameAt,
	}
}

// ViewFrame calls fn with the current frame payload, if any.
// Returns false when no frame is held.
func (s *Session) ViewFrame(fn func(data []byte, at time.Time)) bool {
	return s.frames.View(fn)
}

// Frames exposes the frame store for leak accounting.
func (s *Session) Frames() *frame.Store {
	return s.frames
}

// dialLocked starts a new connection attempt. Caller holds s.mu. The
// previous transport is guaranteed closed before this is reached: either
// handleClose observed its close event, or Stop closed it.
func (s *Session) dialLocked() {
	s.gen++
	gen := s.gen
	s.setStateLocked(StateConnecting, Event{Type: EventConnecting})

	go s.dial(gen)
}

// dial runs the blocking websocket handshake off the event path.
func (s *Session) dial(gen int) {
	url, err := StreamURL(s.cfg.ServerURL, s.cfg.UnitID)
	if err != nil {
		// Config-level failure: no point retrying a URL that cannot exist.
		s.logger.Error("invalid stream url", "error", err)
		s.mu.Lock()
		if !s.stopped && gen == s.gen {
			s.setStateLocked(StateFailed, Event{Type: EventFailed})
		}
		s.mu.Unlock()
		return
	}

	t, err := s.dialer.Dial(url)
	if err != nil {
		s.logger.Warn("stream dial failed", "error", err)
		s.handleClose(gen, CloseAbnormal)
		return
	}

	s.mu.Lock()
	if s.stopped || gen != s.gen {
		// Superseded while dialing; this handle must not survive.
		s.mu.Unlock()
		t.Close()
		return
	}
	s.transport = t
	s.retries = 0
	s.setStateLocked(StateOpen, Event{Type: EventOpen})
	s.mu.Unlock()

	go s.readLoop(gen, t)
}

// readLoop forwards transport events into the session until the transport
// closes. One loop per transport generation.
func (s *Session) readLoop(gen int, t Transport) {
	msgs := t.Messages()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.handleFrame(gen, msg)

		case ev := <-t.Closed():
			s.handleClose(gen, ev.Code)
			return
		}
	}
}

// handleFrame accepts one frame: the new buffer is made ready first, then
// swapped in, releasing the previous frame exactly once. Acquire and Publish
// stay under s.mu so a concurrent Stop cannot clear the store and then lose
// to a late publish.
func (s *Session) handleFrame(gen int, msg Message) {
	s.mu.Lock()
	if s.stopped || gen != s.gen || s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.framesSeen++
	s.lastFrameAt = msg.ReceivedAt

	f := s.frames.Acquire(msg.Data, msg.ReceivedAt)
	s.frames.Publish(f)
	s.mu.Unlock()

	metrics.FramesTotal.WithLabelValues(s.cfg.UnitID).Inc()
	metrics.FrameBytesTotal.WithLabelValues(s.cfg.UnitID).Add(float64(len(msg.Data)))
	metrics.FrameSizeBytes.Observe(float64(len(msg.Data)))
}

// handleClose reacts to transport closure. A normal closure (1000) ends the
// session; anything else schedules a backoff retry until the ceiling, after
// which the session is failed and waits for a manual retry.
func (s *Session) handleClose(gen int, code int) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}

	t := s.transport
	s.transport = nil

	switch {
	case code == CloseNormal:
		s.setStateLocked(StateClosed, Event{Type: EventClosed, CloseCode: code})

	case s.retries < s.cfg.MaxRetries:
		delay := s.cfg.RetryBaseDelay << s.retries
		attempt := s.retries + 1
		s.setStateLocked(StateReconnecting, Event{
			Type:      EventRetryScheduled,
			CloseCode: code,
			Attempt:   attempt,
			Delay:     delay,
		})
		s.logger.Warn("stream closed abnormally, reconnecting",
			"code", code,
			"attempt", attempt,
			"delay", delay,
		)
		metrics.ReconnectsTotal.WithLabelValues(s.cfg.UnitID).Inc()
		s.retryTimer = s.newTimer(delay, func() { s.retryFired(gen) })

	default:
		s.logger.Error("stream retries exhausted", "code", code, "retries", s.retries)
		metrics.FailuresTotal.WithLabelValues(s.cfg.UnitID).Inc()
		s.setStateLocked(StateFailed, Event{Type: EventFailed, CloseCode: code})
	}
	s.mu.Unlock()

	if t != nil {
		t.Close()
	}
}

// retryFired runs when the backoff timer elapses.
func (s *Session) retryFired(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || gen != s.gen || s.state != StateReconnecting {
		return
	}
	s.retryTimer = nil
	s.retries++
	s.dialLocked()
}

// setStateLocked records a transition and notifies the event sink.
// Caller holds s.mu.
func (s *Session) setStateLocked(state State, ev Event) {
	s.state = state
	s.logger.Debug("stream state", "state", state)

	if s.cfg.Events == nil {
		return
	}
	ev.UnitID = s.cfg.UnitID
	ev.SessionID = s.id
	ev.State = state
	ev.At = time.Now()
	select {
	case s.cfg.Events <- ev:
	default:
		metrics.RecorderDroppedTotal.Inc()
	}
}
