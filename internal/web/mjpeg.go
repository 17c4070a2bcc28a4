package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const mjpegBoundary = "apisviewerframe"

// framePollInterval bounds how often the republisher checks for a new frame.
const framePollInterval = 33 * time.Millisecond

// handleMJPEG republishes a unit's live frames as multipart/x-mixed-replace.
// Each part is one JPEG; a part is written only when the stored frame
// changes, identified by its capture timestamp.
func (s *Server) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")

	if _, err := s.dir.Info(unitID); err != nil {
		writeError(w, http.StatusNotFound, "no stream session for unit")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	s.logger.Debug("mjpeg client connected", "unit_id", unitID)

	ticker := time.NewTicker(framePollInterval)
	defer ticker.Stop()

	var lastAt time.Time
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("mjpeg client disconnected", "unit_id", unitID)
			return
		case <-ticker.C:
		}

		var (
			buf     []byte
			frameAt time.Time
		)
		s.dir.ViewFrame(unitID, func(data []byte, at time.Time) {
			if at.Equal(lastAt) {
				return
			}
			// Copy: the view is only valid inside the callback.
			buf = append(buf[:0], data...)
			frameAt = at
		})
		if buf == nil {
			continue
		}
		lastAt = frameAt

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(buf)); err != nil {
			return
		}
		if _, err := w.Write(buf); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}
