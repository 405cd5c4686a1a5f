package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/yndnr/tokstash-go/internal/infra/tlsroots"
)

// Config holds the listener settings.
type Config struct {
	Addr         string
	TLSCertFile  string
	TLSKeyFile   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Logger receives certificate reload events.
	Logger *slog.Logger
}

// TLSEnabled reports whether both certificate and key are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Server represents the HTTP server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	ln         net.Listener
	keyPair    *tlsroots.KeyPair
}

// New creates a new HTTP server.
func New(cfg Config, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Listen binds the configured address without serving yet, so callers
// can learn the bound port before Serve. With TLS configured the key pair
// is loaded here and reloaded whenever its files change.
func (s *Server) Listen() error {
	var tlsConfig *tls.Config
	if s.cfg.TLSEnabled() {
		opts := []tlsroots.KeyPairOption{}
		if s.cfg.Logger != nil {
			opts = append(opts, tlsroots.WithLogger(s.cfg.Logger))
		}
		kp, err := tlsroots.LoadKeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile, opts...)
		if err != nil {
			return err
		}
		if err := kp.Watch(); err != nil {
			kp.Close()
			return err
		}
		s.keyPair = kp
		tlsConfig = kp.ServerConfig()
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		if s.keyPair != nil {
			s.keyPair.Close()
		}
		return err
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// Serve accepts connections until Shutdown. It listens first if Listen
// was not called. http.ErrServerClosed is reported as nil.
func (s *Server) Serve() error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	err := s.httpServer.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.keyPair != nil {
		s.keyPair.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
