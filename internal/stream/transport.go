package stream

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DialerConfig configures the websocket dialer.
type DialerConfig struct {
	HandshakeTimeout time.Duration
	APIKey           string // Bearer token for the APIS server, optional
	MessageBuffer    int    // Frame channel capacity
}

// DefaultDialerConfig returns sensible defaults.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		MessageBuffer:    16,
	}
}

// WSDialer dials gorilla/websocket transports.
type WSDialer struct {
	cfg    DialerConfig
	logger *slog.Logger
}

// NewWSDialer creates a websocket dialer.
func NewWSDialer(cfg DialerConfig, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = 16
	}
	return &WSDialer{cfg: cfg, logger: logger}
}

// Dial establishes a websocket connection and starts its read loop.
func (d *WSDialer) Dial(url string) (Transport, error) {
	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		conn:     conn,
		logger:   d.logger.With("url", url),
		messages: make(chan Message, d.cfg.MessageBuffer),
		closed:   make(chan CloseEvent, 1),
		done:     make(chan struct{}),
	}

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go t.readLoop()

	d.logger.Debug("websocket connected", "url", url)
	return t, nil
}

// wsTransport wraps a gorilla connection as a receive-only frame stream.
type wsTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	messages chan Message
	closed   chan CloseEvent
	done     chan struct{}

	mu       sync.Mutex
	shutdown bool
}

func (t *wsTransport) Messages() <-chan Message {
	return t.messages
}

func (t *wsTransport) Closed() <-chan CloseEvent {
	return t.closed
}

// Close sends a normal closure and tears the connection down. Idempotent.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	t.mu.Unlock()

	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := t.conn.Close()

	t.emitClose(CloseEvent{Code: CloseNormal})
	return err
}

// readLoop reads messages until the connection dies. Binary messages are
// frames; text messages are server-side status notices and only logged.
func (t *wsTransport) readLoop() {
	defer close(t.messages)

	for {
		msgType, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-t.done:
				// Local Close already emitted the close event.
			default:
				t.emitClose(CloseEvent{Code: closeCode(err), Err: err})
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			msg := Message{Data: data, ReceivedAt: receivedAt}
			select {
			case t.messages <- msg:
			case <-t.done:
				return
			default:
				t.logger.Warn("frame buffer full, dropping frame")
			}
		case websocket.TextMessage:
			t.logger.Warn("stream notice from server", "message", string(data))
		}
	}
}

// emitClose delivers the close event at most once.
func (t *wsTransport) emitClose(ev CloseEvent) {
	select {
	case t.closed <- ev:
	default:
	}
}

// closeCode extracts the websocket close code from a read error. Errors
// without a close frame (dial resets, dropped TCP) count as abnormal.
func closeCode(err error) int {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return CloseAbnormal
}
