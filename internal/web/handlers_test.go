package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hivewarden/apis-viewer/internal/stream"
	"github.com/hivewarden/apis-viewer/internal/viewer"
)

// fakeDirectory is a scriptable StreamDirectory.
type fakeDirectory struct {
	infos    map[string]stream.Info
	retryErr error
	frame    []byte
	frameAt  time.Time
}

func (d *fakeDirectory) Snapshot() []stream.Info {
	out := make([]stream.Info, 0, len(d.infos))
	for _, info := range d.infos {
		out = append(out, info)
	}
	return out
}

func (d *fakeDirectory) Info(unitID string) (stream.Info, error) {
	info, ok := d.infos[unitID]
	if !ok {
		return stream.Info{}, viewer.ErrUnknownUnit
	}
	return info, nil
}

func (d *fakeDirectory) Retry(unitID string) error {
	if _, ok := d.infos[unitID]; !ok {
		return viewer.ErrUnknownUnit
	}
	return d.retryErr
}

func (d *fakeDirectory) ViewFrame(unitID string, fn func(data []byte, at time.Time)) bool {
	if d.frame == nil {
		return false
	}
	fn(d.frame, d.frameAt)
	return true
}

func newTestServer(dir *fakeDirectory) *Server {
	return NewServer(Config{Port: 0}, dir, nil)
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeDirectory{})

	rec := doRequest(t, s, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestListStreams(t *testing.T) {
	dir := &fakeDirectory{infos: map[string]stream.Info{
		"u-1": {UnitID: "u-1", SessionID: uuid.New(), State: stream.StateOpen, FramesSeen: 12},
	}}
	s := newTestServer(dir)

	rec := doRequest(t, s, http.MethodGet, "/api/streams")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data []stream.Info `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("data length = %d, want 1", len(body.Data))
	}
	if body.Data[0].UnitID != "u-1" || body.Data[0].State != stream.StateOpen {
		t.Errorf("unexpected snapshot: %+v", body.Data[0])
	}
}

func TestGetStreamNotFound(t *testing.T) {
	s := newTestServer(&fakeDirectory{})

	rec := doRequest(t, s, http.MethodGet, "/api/streams/nope")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestRetryAccepted(t *testing.T) {
	dir := &fakeDirectory{infos: map[string]stream.Info{
		"u-1": {UnitID: "u-1", State: stream.StateFailed},
	}}
	s := newTestServer(dir)

	rec := doRequest(t, s, http.MethodPost, "/api/streams/u-1/retry")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestRetryNotFailed(t *testing.T) {
	dir := &fakeDirectory{
		infos:    map[string]stream.Info{"u-1": {UnitID: "u-1", State: stream.StateOpen}},
		retryErr: stream.ErrNotFailed,
	}
	s := newTestServer(dir)

	rec := doRequest(t, s, http.MethodPost, "/api/streams/u-1/retry")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRetryUnknownUnit(t *testing.T) {
	s := newTestServer(&fakeDirectory{})

	rec := doRequest(t, s, http.MethodPost, "/api/streams/nope/retry")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMJPEGNotFound(t *testing.T) {
	s := newTestServer(&fakeDirectory{})

	rec := doRequest(t, s, http.MethodGet, "/streams/nope/mjpeg")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMJPEGWritesFrame(t *testing.T) {
	dir := &fakeDirectory{
		infos:   map[string]stream.Info{"u-1": {UnitID: "u-1", State: stream.StateOpen}},
		frame:   []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9},
		frameAt: time.Now(),
	}
	s := newTestServer(dir)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/streams/u-1/mjpeg", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.Handler().ServeHTTP(rec, req)
		close(done)
	}()

	// Let the republisher emit at least one part, then disconnect.
	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q, want multipart/x-mixed-replace", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Error("body missing jpeg part header")
	}
	if strings.Count(body, "--"+mjpegBoundary) != 1 {
		t.Errorf("expected exactly one part for an unchanged frame, body:\n%s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeDirectory{})

	rec := doRequest(t, s, http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected metrics exposition output")
	}
}
