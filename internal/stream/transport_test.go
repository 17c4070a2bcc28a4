package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockStreamServer creates a test WebSocket server.
func mockStreamServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func serverWSURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSDialer_ReceivesBinaryFrames(t *testing.T) {
	frames := [][]byte{
		{0xFF, 0xD8, 0x01, 0xFF, 0xD9},
		{0xFF, 0xD8, 0x02, 0xFF, 0xD9},
		{0xFF, 0xD8, 0x03, 0xFF, 0xD9},
	}

	server := mockStreamServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	dialer := NewWSDialer(DefaultDialerConfig(), nil)
	tr, err := dialer.Dial(serverWSURL(server))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	timeout := time.After(2 * time.Second)
	for i, want := range frames {
		select {
		case msg := <-tr.Messages():
			if string(msg.Data) != string(want) {
				t.Errorf("frame %d = %x, want %x", i, msg.Data, want)
			}
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for frame %d", i)
		}
	}
}

func TestWSDialer_TextMessagesAreNotFrames(t *testing.T) {
	server := mockStreamServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("Unit stream unavailable"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0xD8})
		time.Sleep(time.Second)
	})
	defer server.Close()

	dialer := NewWSDialer(DefaultDialerConfig(), nil)
	tr, err := dialer.Dial(serverWSURL(server))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	select {
	case msg := <-tr.Messages():
		if string(msg.Data) != string([]byte{0xFF, 0xD8}) {
			t.Errorf("first frame = %x, want the binary payload", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for binary frame")
	}
}

func TestWSDialer_RemoteNormalClose(t *testing.T) {
	server := mockStreamServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second),
		)
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	dialer := NewWSDialer(DefaultDialerConfig(), nil)
	tr, err := dialer.Dial(serverWSURL(server))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	select {
	case ev := <-tr.Closed():
		if ev.Code != CloseNormal {
			t.Errorf("close code = %d, want %d", ev.Code, CloseNormal)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close event")
	}
}

func TestWSDialer_AbruptDisconnectIsAbnormal(t *testing.T) {
	server := mockStreamServer(t, func(conn *websocket.Conn) {
		// Drop the TCP connection without a close frame.
		conn.Close()
	})
	defer server.Close()

	dialer := NewWSDialer(DefaultDialerConfig(), nil)
	tr, err := dialer.Dial(serverWSURL(server))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	select {
	case ev := <-tr.Closed():
		if ev.Code == CloseNormal {
			t.Errorf("close code = %d, want abnormal", ev.Code)
		}
		if ev.Err == nil {
			t.Error("abnormal close should carry the underlying error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close event")
	}
}

func TestWSTransport_DoubleClose(t *testing.T) {
	server := mockStreamServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	dialer := NewWSDialer(DefaultDialerConfig(), nil)
	tr, err := dialer.Dial(serverWSURL(server))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		name      string
		serverURL string
		unitID    string
		want      string
		wantErr   bool
	}{
		{
			name:      "https becomes wss",
			serverURL: "https://apis.example.com",
			unitID:    "unit-42",
			want:      "wss://apis.example.com/ws/stream/unit-42",
		},
		{
			name:      "http becomes ws",
			serverURL: "http://localhost:8080",
			unitID:    "unit-42",
			want:      "ws://localhost:8080/ws/stream/unit-42",
		},
		{
			name:      "trailing slash",
			serverURL: "https://apis.example.com/",
			unitID:    "u1",
			want:      "wss://apis.example.com/ws/stream/u1",
		},
		{
			name:      "ws scheme preserved",
			serverURL: "ws://apis.local",
			unitID:    "u1",
			want:      "ws://apis.local/ws/stream/u1",
		},
		{
			name:      "unit id is escaped",
			serverURL: "https://apis.example.com",
			unitID:    "a/b",
			want:      "wss://apis.example.com/ws/stream/a%2Fb",
		},
		{
			name:      "empty unit id",
			serverURL: "https://apis.example.com",
			unitID:    "",
			wantErr:   true,
		},
		{
			name:      "unsupported scheme",
			serverURL: "ftp://apis.example.com",
			unitID:    "u1",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StreamURL(tt.serverURL, tt.unitID)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("StreamURL() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("StreamURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
