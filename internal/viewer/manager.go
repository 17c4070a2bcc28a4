package viewer

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hivewarden/apis-viewer/internal/metrics"
	"github.com/hivewarden/apis-viewer/internal/model"
	"github.com/hivewarden/apis-viewer/internal/stream"
	"github.com/hivewarden/apis-viewer/internal/units"
)

// ErrUnknownUnit is returned for operations on units without a session.
var ErrUnknownUnit = errors.New("no stream session for unit")

// Config holds viewer manager configuration.
type Config struct {
	ServerURL        string        // APIS server base URL
	APIKey           string        // Bearer token forwarded on the stream handshake
	RetryBaseDelay   time.Duration // Session backoff base
	MaxRetries       int           // Session retry ceiling
	HandshakeTimeout time.Duration // WebSocket dial timeout
	EventBufferSize  int           // Session event fan-in capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryBaseDelay:   stream.InitialRetryDelay,
		MaxRetries:       stream.MaxRetries,
		HandshakeTimeout: 10 * time.Second,
		EventBufferSize:  1024,
	}
}

// Manager supervises one stream session per online unit, driven by registry
// change events.
type Manager struct {
	cfg      Config
	registry units.Registry
	dialer   stream.Dialer
	logger   *slog.Logger

	// Session lifecycle events fanned in from all sessions.
	events chan stream.Event

	mu       sync.Mutex
	sessions map[string]*stream.Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a viewer manager. A nil dialer gets the production
// websocket dialer.
func NewManager(cfg Config, registry units.Registry, dialer stream.Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = DefaultConfig().EventBufferSize
	}
	if dialer == nil {
		dialer = stream.NewWSDialer(stream.DialerConfig{
			HandshakeTimeout: cfg.HandshakeTimeout,
			APIKey:           cfg.APIKey,
		}, logger)
	}

	return &Manager{
		cfg:      cfg,
		registry: registry,
		dialer:   dialer,
		logger:   logger,
		events:   make(chan stream.Event, cfg.EventBufferSize),
		sessions: make(map[string]*stream.Session),
	}
}

// Start seeds sessions for units already known to the registry and begins
// consuming registry changes.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	for _, u := range m.registry.Units() {
		if u.Status.Streamable() {
			m.startSession(u)
		}
	}

	m.wg.Add(1)
	go m.changeLoop()

	m.logger.Info("viewer manager started", "sessions", m.SessionCount())
	return nil
}

// Stop tears down all sessions.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping viewer manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("viewer manager stop timed out")
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.stopSession(id)
	}

	close(m.events)
	m.logger.Info("viewer manager stopped")
	return nil
}

// Events returns the fan-in channel of session lifecycle events.
// Closed by Stop.
func (m *Manager) Events() <-chan stream.Event {
	return m.events
}

// SessionCount returns the number of supervised sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Snapshot returns session info for all supervised units, sorted by unit id.
func (m *Manager) Snapshot() []stream.Info {
	m.mu.Lock()
	infos := make([]stream.Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].UnitID < infos[j].UnitID })
	return infos
}

// Info returns the session snapshot for one unit.
func (m *Manager) Info(unitID string) (stream.Info, error) {
	m.mu.Lock()
	s, ok := m.sessions[unitID]
	m.mu.Unlock()

	if !ok {
		return stream.Info{}, ErrUnknownUnit
	}
	return s.Info(), nil
}

// Retry triggers a manual retry for a failed unit session.
func (m *Manager) Retry(unitID string) error {
	m.mu.Lock()
	s, ok := m.sessions[unitID]
	m.mu.Unlock()

	if !ok {
		return ErrUnknownUnit
	}
	return s.Retry()
}

// ViewFrame calls fn with the unit's current frame, if any.
func (m *Manager) ViewFrame(unitID string, fn func(data []byte, at time.Time)) bool {
	m.mu.Lock()
	s, ok := m.sessions[unitID]
	m.mu.Unlock()

	if !ok {
		return false
	}
	return s.ViewFrame(fn)
}

// changeLoop reacts to registry change events.
func (m *Manager) changeLoop() {
	defer m.wg.Done()

	changes := m.registry.SubscribeChanges()
	for {
		select {
		case <-m.ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			m.handleChange(change)
		}
	}
}

// handleChange starts or stops a session for one unit state transition.
func (m *Manager) handleChange(change units.UnitChange) {
	switch change.EventType {
	case units.EventDiscovered:
		if change.NewStatus.Streamable() && change.Unit != nil {
			m.startSession(*change.Unit)
		}

	case units.EventStatusChange:
		wasStreaming := change.OldStatus.Streamable()
		isStreaming := change.NewStatus.Streamable()

		if isStreaming && !wasStreaming && change.Unit != nil {
			m.startSession(*change.Unit)
		} else if !isStreaming && wasStreaming {
			m.stopSession(change.UnitID)
		}

	case units.EventRemoved:
		m.stopSession(change.UnitID)
	}
}

// startSession creates and starts a session for an online unit.
func (m *Manager) startSession(u model.Unit) {
	m.mu.Lock()
	if _, exists := m.sessions[u.ID]; exists {
		m.mu.Unlock()
		return
	}

	cfg := stream.SessionConfig{
		UnitID:           u.ID,
		UnitStatus:       u.Status,
		ServerURL:        m.cfg.ServerURL,
		RetryBaseDelay:   m.cfg.RetryBaseDelay,
		MaxRetries:       m.cfg.MaxRetries,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		Events:           m.events,
	}
	s := stream.NewSession(cfg, m.dialer, m.logger)
	m.sessions[u.ID] = s
	m.mu.Unlock()

	if err := s.Start(); err != nil {
		m.logger.Error("failed to start stream session",
			"unit_id", u.ID,
			"error", err,
		)
		m.mu.Lock()
		delete(m.sessions, u.ID)
		m.mu.Unlock()
		return
	}

	metrics.ActiveSessions.Inc()
	m.logger.Info("stream session started", "unit_id", u.ID, "unit", u.DisplayName())
}

// stopSession tears down a unit's session if one exists.
func (m *Manager) stopSession(unitID string) {
	m.mu.Lock()
	s, ok := m.sessions[unitID]
	if ok {
		delete(m.sessions, unitID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	s.Stop()
	metrics.ActiveSessions.Dec()
	m.logger.Info("stream session stopped", "unit_id", unitID)
}
