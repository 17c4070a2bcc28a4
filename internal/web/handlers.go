package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hivewarden/apis-viewer/internal/stream"
	"github.com/hivewarden/apis-viewer/internal/version"
	"github.com/hivewarden/apis-viewer/internal/viewer"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": s.dir.Snapshot()})
}

func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")

	info, err := s.dir.Info(unitID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no stream session for unit")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": info})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")

	err := s.dir.Retry(unitID)
	switch {
	case err == nil:
		info, _ := s.dir.Info(unitID)
		writeJSON(w, http.StatusAccepted, map[string]any{"data": info})
	case errors.Is(err, viewer.ErrUnknownUnit):
		writeError(w, http.StatusNotFound, "no stream session for unit")
	case errors.Is(err, stream.ErrNotFailed):
		writeError(w, http.StatusConflict, "stream is not in failed state")
	case errors.Is(err, stream.ErrStopped):
		writeError(w, http.StatusConflict, "stream session is stopped")
	default:
		s.logger.Error("manual retry failed", "unit_id", unitID, "error", err)
		writeError(w, http.StatusInternalServerError, "retry failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
