// Package handler provides HTTP request handlers for tokstash.
package handler

import (
	"net/http"

	"github.com/yndnr/tokstash-go/internal/core/service"
)

// handleCreate handles GET|POST /create.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r, h.maxBody)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Create(r.Context(), p.payload, p.ttl)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, CreateResponse{Message: MsgOK, Token: res.Token})
}

// handleValidate handles GET /validate/{token}.
//
// Unknown, malformed and expired tokens all answer 410 "invalid token".
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Validate(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Outcome != service.OutcomeValid {
		h.writeJSON(w, r, http.StatusGone, MessageResponse{Message: MsgInvalidToken})
		return
	}

	h.write(w, r, http.StatusOK, res.Body)
}

// handleExpire handles GET /expire/{token}. Expiring an unknown token
// is not an error.
func (h *Handler) handleExpire(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.Expire(r.Context(), r.PathValue("token")); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, MessageResponse{Message: MsgOK})
}

// handleUpdateExpiration handles GET|POST /update_expiration/{token}.
func (h *Handler) handleUpdateExpiration(w http.ResponseWriter, r *http.Request) {
	ttl, err := decodeTTL(r, h.maxBody)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tok := r.PathValue("token")
	res, err := h.engine.Update(r.Context(), tok, ttl)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Outcome != service.OutcomeValid {
		h.writeJSON(w, r, http.StatusGone, MessageResponse{Message: MsgInvalidToken})
		return
	}

	h.writeJSON(w, r, http.StatusOK, UpdateResponse{
		Message:    MsgOK,
		Token:      tok,
		Expiration: res.Expiration,
	})
}

// handleGetExpired handles GET /get_expired/{token}. Only archived
// records are returned; an active token answers 404.
func (h *Handler) handleGetExpired(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ReadExpired(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Outcome != service.OutcomeValid {
		h.writeJSON(w, r, http.StatusNotFound, MessageResponse{Message: MsgInvalidToken})
		return
	}

	h.write(w, r, http.StatusOK, res.Body)
}
