package stream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hivewarden/apis-viewer/internal/model"
)

// Errors
var (
	ErrInvalidUnit = errors.New("unit id is required")
	ErrStopped     = errors.New("session stopped")
	ErrNotFailed   = errors.New("manual retry only valid from failed state")
)

// Backoff constants. These match the dashboard's tuning and are part of the
// behavior contract, not a policy to improve on.
const (
	InitialRetryDelay = 1 * time.Second
	MaxRetries        = 4
)

// WebSocket close codes the session cares about. Only a normal closure
// suppresses the retry path.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// State is the session's connection state. Exactly one is active at a time.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// Terminal returns true for states that take no further automatic action.
// failed awaits a manual retry; closed is done for the session lifetime.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// Message is one payload received over the transport.
type Message struct {
	Data       []byte    // Raw binary frame bytes
	ReceivedAt time.Time // Local timestamp when the read returned
}

// CloseEvent reports transport closure. Fired exactly once per transport.
type CloseEvent struct {
	Code int   // WebSocket close code; CloseAbnormal when none was received
	Err  error // Underlying error, nil for a clean close
}

// Transport is one live connection to a unit's stream endpoint.
type Transport interface {
	// Messages returns the channel of binary frame payloads.
	Messages() <-chan Message

	// Closed returns a channel that delivers exactly one CloseEvent when
	// the transport shuts down, whether locally or remotely.
	Closed() <-chan CloseEvent

	// Close tears the connection down. Idempotent.
	Close() error
}

// Dialer constructs transports. The production implementation dials
// gorilla/websocket; tests substitute a fake.
type Dialer interface {
	Dial(url string) (Transport, error)
}

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// TimerFunc schedules fn after d. Tests substitute a manual clock.
type TimerFunc func(d time.Duration, fn func()) Timer

// EventType classifies session lifecycle events.
type EventType string

const (
	EventConnecting     EventType = "connecting"
	EventOpen           EventType = "open"
	EventClosed         EventType = "closed"
	EventRetryScheduled EventType = "retry_scheduled"
	EventFailed         EventType = "failed"
	EventStopped        EventType = "stopped"
)

// Event is a session lifecycle notification for observers (recorder, logs).
type Event struct {
	UnitID    string
	SessionID uuid.UUID
	Type      EventType
	State     State
	CloseCode int           // Set for EventClosed
	Attempt   int           // Retry attempt number, set for EventRetryScheduled
	Delay     time.Duration // Scheduled backoff, set for EventRetryScheduled
	At        time.Time
}

// SessionConfig configures one stream session.
type SessionConfig struct {
	UnitID     string           // Opaque unit identifier
	UnitStatus model.UnitStatus // Only online units get a transport
	ServerURL  string           // APIS server base URL (http or https)

	RetryBaseDelay   time.Duration // Backoff base, doubles per attempt
	MaxRetries       int           // Automatic retry ceiling
	HandshakeTimeout time.Duration // WebSocket dial timeout

	Events chan<- Event // Optional lifecycle sink; sends never block
}

// DefaultSessionConfig returns the dashboard-compatible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RetryBaseDelay:   InitialRetryDelay,
		MaxRetries:       MaxRetries,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Info is a point-in-time session snapshot for callers.
type Info struct {
	UnitID      string    `json:"unit_id"`
	SessionID   uuid.UUID `json:"session_id"`
	State       State     `json:"state"`
	RetryCount  int       `json:"retry_count"`
	FramesSeen  int64     `json:"frames_seen"`
	LastFrameAt time.Time `json:"last_frame_at,omitzero"`
}

// StreamURL derives the websocket endpoint for a unit from the server base
// URL: http becomes ws, https becomes wss, path /ws/stream/{unitID}.
func StreamURL(serverURL, unitID string) (string, error) {
	if unitID == "" {
		return "", ErrInvalidUnit
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", serverURL)
	}

	var scheme string
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	base := strings.TrimSuffix(u.EscapedPath(), "/")
	return scheme + "://" + u.Host + base + "/ws/stream/" + url.PathEscape(unitID), nil
}
