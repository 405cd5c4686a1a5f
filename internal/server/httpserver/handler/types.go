// Package handler provides HTTP request handlers for tokstash.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/internal/telemetry/logger"
)

// Response messages.
const (
	MsgOK           = "ok"
	MsgInvalidToken = "invalid token"
	MsgInternal     = "internal server error"
)

// MessageResponse is the body of acknowledgements and failures.
type MessageResponse struct {
	Message string `json:"message"`

	// EID correlates a 500 response with the server log entry.
	EID string `json:"eid,omitempty"`
}

// CreateResponse is the response body for /create.
type CreateResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// UpdateResponse is the response body for /update_expiration/{token}.
type UpdateResponse struct {
	Message    string `json:"message"`
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"`
}

// writeJSON encodes v and writes it with the standard shaping.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	h.write(w, r, status, body)
}

// write applies the response shaping shared by every token route:
// no-cache headers, and JSONP wrapping when a callback parameter is
// present. JSONP clients cannot observe a 404, so it is sent as 200.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	hdr := w.Header()
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Pragma", "no-cache")

	cb := r.FormValue("callback")
	if cb == "" {
		hdr.Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	if !validCallback(cb) {
		hdr.Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid callback"}`))
		return
	}

	if status == http.StatusNotFound {
		status = http.StatusOK
	}
	hdr.Set("Content-Type", "application/javascript")
	w.WriteHeader(status)
	out := make([]byte, 0, len(cb)+len(body)+3)
	out = append(out, cb...)
	out = append(out, '(')
	out = append(out, body...)
	out = append(out, ')', ';')
	_, _ = w.Write(out)
}

// validCallback accepts JavaScript identifiers and dotted member paths.
func validCallback(s string) bool {
	if len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '$':
		case c >= '0' && c <= '9', c == '.':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// writeError maps an engine error onto a response. Caller input errors
// become 400 with their message; everything else is a 500 carrying an
// eid that is also logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if domain.IsCallerError(err) && errors.As(err, &de) {
		h.writeJSON(w, r, http.StatusBadRequest, MessageResponse{Message: de.Message})
		return
	}
	h.writeInternal(w, r, err)
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	eid := uuid.NewString()
	h.logger.ErrorContext(r.Context(), "request failed",
		"eid", eid,
		"request_id", logger.RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	h.writeJSON(w, r, http.StatusInternalServerError, MessageResponse{Message: MsgInternal, EID: eid})
}
