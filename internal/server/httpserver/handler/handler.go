// Package handler provides HTTP request handlers for tokstash.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/internal/core/service"
)

// Engine is the token lifecycle surface the handlers drive.
type Engine interface {
	Create(ctx context.Context, payload domain.Payload, ttlSeconds int64) (*service.CreateResult, error)
	Validate(ctx context.Context, tok string) (*service.LookupResult, error)
	Expire(ctx context.Context, tok string) (*service.ExpireResult, error)
	Update(ctx context.Context, tok string, ttlSeconds int64) (*service.UpdateResult, error)
	ReadExpired(ctx context.Context, tok string) (*service.LookupResult, error)
}

// Options configures a Handler. Zero values are usable.
type Options struct {
	Logger *slog.Logger

	// Diagnostics is reported by GET /diagnostic.
	Diagnostics Diagnostics

	// Ready reports backend readiness for GET /ready. Nil means always ready.
	Ready func(context.Context) error

	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// MaxBodyBytes caps request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes is the request body cap when Options leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	engine  Engine
	logger  *slog.Logger
	diag    Diagnostics
	ready   func(context.Context) error
	metrics http.Handler
	maxBody int64
	mux     *http.ServeMux
}

// New creates a new Handler driving engine.
func New(engine Engine, opts Options) *Handler {
	h := &Handler{
		engine:  engine,
		logger:  opts.Logger,
		diag:    opts.Diagnostics,
		ready:   opts.Ready,
		metrics: opts.Metrics,
		maxBody: opts.MaxBodyBytes,
		mux:     http.NewServeMux(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	if h.diag.StartTime.IsZero() {
		h.diag.StartTime = time.Now()
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Token lifecycle
	h.mux.HandleFunc("GET /create", h.handleCreate)
	h.mux.HandleFunc("POST /create", h.handleCreate)
	h.mux.HandleFunc("GET /validate/{token}", h.handleValidate)
	h.mux.HandleFunc("GET /expire/{token}", h.handleExpire)
	h.mux.HandleFunc("GET /update_expiration/{token}", h.handleUpdateExpiration)
	h.mux.HandleFunc("POST /update_expiration/{token}", h.handleUpdateExpiration)
	h.mux.HandleFunc("GET /get_expired/{token}", h.handleGetExpired)

	// Operational endpoints
	h.mux.HandleFunc("GET /diagnostic", h.handleDiagnostic)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}
}
