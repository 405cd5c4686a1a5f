// Package handler provides HTTP request handlers for tokstash.
package handler

import (
	"net/http"
	"os"
	"time"
)

// Diagnostics describes the running process for GET /diagnostic.
type Diagnostics struct {
	// MachineName defaults to os.Hostname().
	MachineName string
	StartTime   time.Time

	// Port is the listening port, reported as null when empty.
	Port    string
	Version string
}

// DiagnosticResponse is the response body for /diagnostic.
type DiagnosticResponse struct {
	MachineName       string  `json:"machine_name"`
	ProcessStartTime  string  `json:"process_start_time"`
	ProcessUptimeSecs int64   `json:"process_uptime_secs"`
	ServerPort        *string `json:"server_port"`
	Version           string  `json:"version"`
}

// handleDiagnostic handles GET /diagnostic.
func (h *Handler) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	name := h.diag.MachineName
	if name == "" {
		name, _ = os.Hostname()
	}

	resp := DiagnosticResponse{
		MachineName:       name,
		ProcessStartTime:  h.diag.StartTime.Format(time.RFC3339Nano),
		ProcessUptimeSecs: int64(time.Since(h.diag.StartTime).Seconds()),
		Version:           h.diag.Version,
	}
	if h.diag.Port != "" {
		port := h.diag.Port
		resp.ServerPort = &port
	}

	w.Header().Set("X-Robots-Tag", "noindex")
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
