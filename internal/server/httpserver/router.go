package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/tokstash-go/internal/server/httpserver/handler"
	"github.com/yndnr/tokstash-go/internal/server/ratelimit"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Engine handles token operations.
	Engine handler.Engine

	// Logger for request logging.
	Logger *slog.Logger

	// Observer records request metrics. Nil disables them.
	Observer Observer

	// Handler carries the route-level options (diagnostics, readiness, body cap).
	Handler handler.Options

	// RateLimiter throttles requests per client IP. Nil disables limiting.
	RateLimiter *ratelimit.Registry

	// TrustedProxies may set the client IP through forwarding headers.
	// Nil keys clients on the TCP peer address.
	TrustedProxies *TrustedProxies

	// Hostname and Version are stamped on every response.
	Hostname string
	Version  string
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	opts := cfg.Handler
	if opts.Logger == nil {
		opts.Logger = log
	}
	h := handler.New(cfg.Engine, opts)

	// Order: RequestID -> ClientIP -> Recover -> AppHeaders -> CORS -> RateLimit -> Audit -> Handler
	chain := []Middleware{
		RequestID(),
		ClientIP(cfg.TrustedProxies),
		Recover(log),
		AppHeaders(cfg.Hostname, cfg.Version),
		CORS(),
	}
	if cfg.RateLimiter != nil {
		chain = append(chain, RateLimit(cfg.RateLimiter, obs))
	}
	chain = append(chain, Audit(log, obs))

	return Chain(h, chain...)
}
