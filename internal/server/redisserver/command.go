package redisserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/internal/core/service"
	"github.com/yndnr/tokstash-go/internal/server/ratelimit"
)

// TransportName labels RESP request metrics.
const TransportName = "resp"

// Command names.
const (
	CmdPing     = "PING"
	CmdQuit     = "QUIT"
	CmdCreate   = "TOKEN.CREATE"
	CmdValidate = "TOKEN.VALIDATE"
	CmdExpire   = "TOKEN.EXPIRE"
	CmdUpdate   = "TOKEN.UPDATE"
	CmdExpired  = "TOKEN.EXPIRED"
)

// Reply status recorded in request metrics. The values mirror the HTTP
// status a caller would see for the same outcome.
const (
	statusOK          = 200
	statusBadRequest  = 400
	statusNotFound    = 404
	statusGone        = 410
	statusRateLimited = 429
	statusInternal    = 500
)

var errInvalidToken = formatRedisError(domain.ErrInvalidToken)

// Engine is the token lifecycle surface the commands drive.
type Engine interface {
	Create(ctx context.Context, payload domain.Payload, ttlSeconds int64) (*service.CreateResult, error)
	Validate(ctx context.Context, tok string) (*service.LookupResult, error)
	Expire(ctx context.Context, tok string) (*service.ExpireResult, error)
	Update(ctx context.Context, tok string, ttlSeconds int64) (*service.UpdateResult, error)
	ReadExpired(ctx context.Context, tok string) (*service.LookupResult, error)
}

// Observer receives request metrics. *metric.Registry implements it.
type Observer interface {
	ObserveRequest(transport, route string, status int, elapsed time.Duration)
	ObserveRateLimited(transport string)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, int, time.Duration) {}
func (nopObserver) ObserveRateLimited(string)                         {}

// tokenReply is the bulk JSON returned by TOKEN.CREATE and TOKEN.UPDATE.
type tokenReply struct {
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"`
}

// CommandHandler handles Redis commands.
type CommandHandler struct {
	engine  Engine
	logger  *slog.Logger
	limiter *ratelimit.Registry
	obs     Observer
}

// NewCommandHandler creates a new CommandHandler. limiter and obs may be nil.
func NewCommandHandler(engine Engine, limiter *ratelimit.Registry, obs Observer, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &CommandHandler{
		engine:  engine,
		logger:  logger,
		limiter: limiter,
		obs:     obs,
	}
}

// Handle handles a Redis command (RESP array of bulk strings).
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, args [][]byte) {
	if len(args) == 0 {
		conn.w.fail("ERR no command")
		return
	}

	start := time.Now()
	name := commandName(args[0])
	status := h.dispatch(ctx, conn, name, args)
	h.obs.ObserveRequest(TransportName, metricRoute(name), status, time.Since(start))
}

func (h *CommandHandler) dispatch(ctx context.Context, conn *Conn, name string, args [][]byte) int {
	// Connection-level commands are not rate limited.
	switch name {
	case CmdPing:
		return h.handlePing(conn, args)
	case CmdQuit:
		return h.handleQuit(conn)
	}

	if h.limiter != nil && !h.limiter.Allow(conn.RemoteIP()) {
		h.obs.ObserveRateLimited(TransportName)
		conn.w.fail(formatRedisError(domain.ErrRateLimited))
		return statusRateLimited
	}

	switch name {
	case CmdCreate:
		return h.handleCreate(ctx, conn, args)
	case CmdValidate:
		return h.handleValidate(ctx, conn, args)
	case CmdExpire:
		return h.handleExpire(ctx, conn, args)
	case CmdUpdate:
		return h.handleUpdate(ctx, conn, args)
	case CmdExpired:
		return h.handleExpired(ctx, conn, args)
	default:
		conn.w.fail("ERR unknown command '" + name + "'")
		return statusNotFound
	}
}

func metricRoute(name string) string {
	switch name {
	case CmdPing, CmdQuit, CmdCreate, CmdValidate, CmdExpire, CmdUpdate, CmdExpired:
		return name
	default:
		return "unknown"
	}
}

func wrongArity(conn *Conn, name string) int {
	conn.w.fail("ERR wrong number of arguments for '" + name + "' command")
	return statusBadRequest
}

// formatRedisError converts an error to a Redis error string.
// For DomainErrors, returns "ERR <code> <message>".
// For other errors, returns "ERR <message>".
func formatRedisError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return "ERR " + de.Code + " " + de.Message
	}
	return "ERR " + err.Error()
}

// writeEngineError reports caller errors verbatim and hides everything
// else behind an eid that is logged with the cause.
func (h *CommandHandler) writeEngineError(ctx context.Context, conn *Conn, name string, err error) int {
	if domain.IsCallerError(err) {
		conn.w.fail(formatRedisError(err))
		return statusBadRequest
	}

	eid := uuid.NewString()
	h.logger.ErrorContext(ctx, "command failed",
		"eid", eid,
		"command", name,
		"remote", conn.RemoteAddr().String(),
		"error", err,
	)
	conn.w.fail(formatRedisError(domain.ErrInternalServer) + " eid=" + eid)
	return statusInternal
}

func parseTTL(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, domain.ErrMissingTTL
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.ErrInvalidTTL
	}
	return n, nil
}

func (h *CommandHandler) handlePing(conn *Conn, args [][]byte) int {
	if len(args) > 1 {
		conn.w.bulk(args[1])
		return statusOK
	}
	conn.w.status("PONG")
	return statusOK
}

func (h *CommandHandler) handleQuit(conn *Conn) int {
	conn.w.status("OK")
	_ = conn.w.flush()
	_ = conn.Close()
	return statusOK
}

func (h *CommandHandler) writeToken(ctx context.Context, conn *Conn, name, tok string, expiration int64) int {
	data, err := json.Marshal(tokenReply{Token: tok, Expiration: expiration})
	if err != nil {
		return h.writeEngineError(ctx, conn, name, err)
	}
	conn.w.bulk(data)
	return statusOK
}

// TOKEN.CREATE <json> <ttl>
func (h *CommandHandler) handleCreate(ctx context.Context, conn *Conn, args [][]byte) int {
	if len(args) != 3 {
		return wrongArity(conn, CmdCreate)
	}

	payload, err := domain.DecodePayload(args[1])
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdCreate, err)
	}
	ttl, err := parseTTL(args[2])
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdCreate, err)
	}

	res, err := h.engine.Create(ctx, payload, ttl)
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdCreate, err)
	}
	return h.writeToken(ctx, conn, CmdCreate, res.Token, res.Expiration)
}

// TOKEN.VALIDATE <token>
func (h *CommandHandler) handleValidate(ctx context.Context, conn *Conn, args [][]byte) int {
	if len(args) != 2 {
		return wrongArity(conn, CmdValidate)
	}

	res, err := h.engine.Validate(ctx, string(args[1]))
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdValidate, err)
	}
	if !res.Valid() {
		conn.w.fail(errInvalidToken)
		return statusGone
	}
	conn.w.bulk(res.Body)
	return statusOK
}

// TOKEN.EXPIRE <token>
//
// Replies 1 when an active record was archived and 0 otherwise.
func (h *CommandHandler) handleExpire(ctx context.Context, conn *Conn, args [][]byte) int {
	if len(args) != 2 {
		return wrongArity(conn, CmdExpire)
	}

	res, err := h.engine.Expire(ctx, string(args[1]))
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdExpire, err)
	}
	var n int64
	if res.Archived {
		n = 1
	}
	conn.w.integer(n)
	return statusOK
}

// TOKEN.UPDATE <token> <ttl>
func (h *CommandHandler) handleUpdate(ctx context.Context, conn *Conn, args [][]byte) int {
	if len(args) != 3 {
		return wrongArity(conn, CmdUpdate)
	}

	ttl, err := parseTTL(args[2])
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdUpdate, err)
	}

	res, err := h.engine.Update(ctx, string(args[1]), ttl)
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdUpdate, err)
	}
	if res.Outcome != service.OutcomeValid {
		conn.w.fail(errInvalidToken)
		return statusGone
	}
	return h.writeToken(ctx, conn, CmdUpdate, res.Token, res.Expiration)
}

// TOKEN.EXPIRED <token>
//
// Replies with the archived body. A token with nothing archived is answered
// like any other invalid token.
func (h *CommandHandler) handleExpired(ctx context.Context, conn *Conn, args [][]byte) int {
	if len(args) != 2 {
		return wrongArity(conn, CmdExpired)
	}

	res, err := h.engine.ReadExpired(ctx, string(args[1]))
	if err != nil {
		return h.writeEngineError(ctx, conn, CmdExpired, err)
	}
	if !res.Valid() {
		conn.w.fail(errInvalidToken)
		return statusNotFound
	}
	conn.w.bulk(res.Body)
	return statusOK
}
