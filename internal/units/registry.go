package units

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hivewarden/apis-viewer/internal/model"
)

// ChangeBufferSize is the capacity of the UnitChange channel.
const ChangeBufferSize = 256

// Change event types.
const (
	EventDiscovered   = "discovered"
	EventStatusChange = "status_change"
	EventRemoved      = "removed"
)

// UnitChange represents a unit state transition observed during reconciliation.
type UnitChange struct {
	UnitID    string
	EventType string           // "discovered", "status_change", "removed"
	OldStatus model.UnitStatus // Previous status (for status_change)
	NewStatus model.UnitStatus // New status (empty for "removed")
	Unit      *model.Unit      // Full unit data (nil for "removed")
}

// Lister is the slice of the REST client the registry needs.
type Lister interface {
	ListUnits(ctx context.Context) ([]model.Unit, error)
}

// Registry tracks detection units and their statuses.
type Registry interface {
	// Start performs the initial sync (blocking), then reconciles in the
	// background, emitting UnitChange events.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// Units returns all known units.
	Units() []model.Unit

	// Unit returns a specific unit by id.
	Unit(id string) (model.Unit, bool)

	// SubscribeChanges returns the channel of unit state changes.
	// The viewer manager uses this to start and stop stream sessions.
	SubscribeChanges() <-chan UnitChange
}

// Config holds unit registry configuration.
type Config struct {
	ReconcileInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 15 * time.Second,
	}
}

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg    Config
	rest   Lister
	logger *slog.Logger

	mu    sync.RWMutex
	units map[string]model.Unit

	changes chan UnitChange

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a unit registry.
func NewRegistry(cfg Config, rest Lister, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultConfig().ReconcileInterval
	}

	return &registryImpl{
		cfg:     cfg,
		rest:    rest,
		logger:  logger,
		units:   make(map[string]model.Unit),
		changes: make(chan UnitChange, ChangeBufferSize),
	}
}

// Start performs the initial sync, then reconciles periodically.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.reconcile(r.ctx); err != nil {
		r.cancel()
		return fmt.Errorf("initial unit sync: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconcileLoop()
	}()

	r.logger.Info("unit registry started",
		"units", len(r.Units()),
		"reconcile_interval", r.cfg.ReconcileInterval,
	)
	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("unit registry stop timed out")
	}

	close(r.changes)
	return nil
}

// Units returns all known units.
func (r *registryImpl) Units() []model.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}

// Unit returns a specific unit by id.
func (r *registryImpl) Unit(id string) (model.Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	return u, ok
}

// SubscribeChanges returns the change channel.
func (r *registryImpl) SubscribeChanges() <-chan UnitChange {
	return r.changes
}

// reconcileLoop refreshes the unit list on a fixed interval.
func (r *registryImpl) reconcileLoop() {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcile(r.ctx); err != nil {
				// Keep the last known state; the next tick retries.
				r.logger.Warn("unit reconciliation failed", "error", err)
			}
		}
	}
}

// reconcile fetches the unit list and diffs it against known state.
func (r *registryImpl) reconcile(ctx context.Context) error {
	fetched, err := r.rest.ListUnits(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(fetched))

	r.mu.Lock()
	var changes []UnitChange
	for _, u := range fetched {
		seen[u.ID] = struct{}{}

		prev, known := r.units[u.ID]
		r.units[u.ID] = u

		if !known {
			unit := u
			changes = append(changes, UnitChange{
				UnitID:    u.ID,
				EventType: EventDiscovered,
				NewStatus: u.Status,
				Unit:      &unit,
			})
			continue
		}
		if prev.Status != u.Status {
			unit := u
			changes = append(changes, UnitChange{
				UnitID:    u.ID,
				EventType: EventStatusChange,
				OldStatus: prev.Status,
				NewStatus: u.Status,
				Unit:      &unit,
			})
		}
	}
	for id, prev := range r.units {
		if _, ok := seen[id]; !ok {
			delete(r.units, id)
			changes = append(changes, UnitChange{
				UnitID:    id,
				EventType: EventRemoved,
				OldStatus: prev.Status,
			})
		}
	}
	r.mu.Unlock()

	for _, ch := range changes {
		r.emit(ch)
	}
	return nil
}

// emit sends a change without blocking reconciliation.
func (r *registryImpl) emit(ch UnitChange) {
	select {
	case r.changes <- ch:
	default:
		r.logger.Warn("unit change buffer full, dropping event",
			"unit_id", ch.UnitID,
			"event", ch.EventType,
		)
	}
}
