// Package service provides the token lifecycle engine for tokstash.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/pkg/token"
)

// Engine implements the token lifecycle on top of a Store.
//
// An Engine is stateless apart from its injected handles and is safe for
// concurrent use. One instance is normally shared by every transport.
type Engine struct {
	store    Store
	now      func() time.Time
	generate func() (string, error)
	recorder Recorder
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithGenerator overrides token generation.
func WithGenerator(gen func() (string, error)) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.generate = gen
		}
	}
}

// WithRecorder installs lifecycle metric hooks.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a new Engine backed by store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		now:      time.Now,
		generate: token.Generate,
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// ============================================================================
// Create
// ============================================================================

// Create stores payload under a fresh token valid for ttlSeconds.
//
// The stored body is payload with an "expiration" field holding the absolute
// expiration; a caller-supplied "expiration" is overwritten.
func (e *Engine) Create(ctx context.Context, payload domain.Payload, ttlSeconds int64) (*CreateResult, error) {
	// 1. Validate input
	expiration, err := expirationAfter(e.now(), ttlSeconds)
	if err != nil {
		return nil, err
	}

	// 2. Issue token
	tok, err := e.generate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	path, err := token.Path(tok)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	// 3. Build record
	body, err := payload.WithExpiration(expiration).Encode()
	if err != nil {
		return nil, domain.ErrInvalidPayload.WithCause(err)
	}

	// 4. Persist
	rec := &domain.Record{Path: path, Body: body, Expiration: expiration}
	if err := e.store.Put(ctx, domain.PartitionActive, rec); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	e.recorder.TokenCreated()
	e.logger.DebugContext(ctx, "token created",
		"token_fp", token.Fingerprint(tok),
		"expiration", expiration,
	)

	return &CreateResult{Token: tok, Expiration: expiration}, nil
}

// ============================================================================
// Validate
// ============================================================================

// Validate looks a token up in the active partition.
//
// A record at or past its expiration is archived as a side effect and
// reported as expired. Archival may also be completed concurrently by
// another caller; both paths converge.
func (e *Engine) Validate(ctx context.Context, tok string) (*LookupResult, error) {
	rec, err := e.getActive(ctx, tok)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		e.recorder.Lookup(OpValidate, OutcomeNotFound)
		return &LookupResult{Outcome: OutcomeNotFound}, nil
	}

	if rec.IsExpiredAt(e.now()) {
		if err := e.archive(ctx, tok, rec, OpValidate); err != nil {
			return nil, err
		}
		e.recorder.Lookup(OpValidate, OutcomeExpired)
		return &LookupResult{Outcome: OutcomeExpired, Expiration: rec.Expiration}, nil
	}

	e.recorder.Lookup(OpValidate, OutcomeValid)
	return &LookupResult{
		Outcome:    OutcomeValid,
		Body:       rec.Body,
		Expiration: rec.Expiration,
	}, nil
}

// ============================================================================
// Expire
// ============================================================================

// Expire archives the token's active record regardless of its expiration.
// Expiring an absent or already-archived token succeeds with Archived=false.
func (e *Engine) Expire(ctx context.Context, tok string) (*ExpireResult, error) {
	rec, err := e.getActive(ctx, tok)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		e.recorder.Lookup(OpExpire, OutcomeNotFound)
		return &ExpireResult{Archived: false}, nil
	}

	if err := e.archive(ctx, tok, rec, OpExpire); err != nil {
		return nil, err
	}
	e.recorder.Lookup(OpExpire, OutcomeValid)
	return &ExpireResult{Archived: true}, nil
}

// ============================================================================
// Update
// ============================================================================

// Update extends a token to expire ttlSeconds from now.
//
// The body gains original_expiration and expiration_seconds (as strings) and
// a new numeric expiration. Concurrent updates race; the last write wins.
// A record already past its expiration is archived instead of extended.
func (e *Engine) Update(ctx context.Context, tok string, ttlSeconds int64) (*UpdateResult, error) {
	// 1. Validate input before touching storage
	if ttlSeconds <= 0 {
		return nil, domain.ErrInvalidTTL
	}

	// 2. Load
	rec, err := e.getActive(ctx, tok)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		e.recorder.Lookup(OpUpdate, OutcomeNotFound)
		return &UpdateResult{Outcome: OutcomeNotFound, Token: tok}, nil
	}

	// 3. Refuse to resurrect expired records
	now := e.now()
	if rec.IsExpiredAt(now) {
		if err := e.archive(ctx, tok, rec, OpUpdate); err != nil {
			return nil, err
		}
		e.recorder.Lookup(OpUpdate, OutcomeExpired)
		return &UpdateResult{Outcome: OutcomeExpired, Token: tok}, nil
	}

	// 4. Splice bookkeeping fields
	payload, err := domain.DecodePayload(rec.Body)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(domain.ErrRecordCorrupted.WithCause(err))
	}
	expiration, err := expirationAfter(now, ttlSeconds)
	if err != nil {
		return nil, err
	}
	body, err := payload.WithExtension(rec.Expiration, ttlSeconds, expiration).Encode()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	// 5. Persist
	updated := &domain.Record{Path: rec.Path, Body: body, Expiration: expiration}
	if err := e.store.Put(ctx, domain.PartitionActive, updated); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	e.recorder.Lookup(OpUpdate, OutcomeValid)
	e.recorder.Updated()
	e.logger.DebugContext(ctx, "token expiration extended",
		"token_fp", token.Fingerprint(tok),
		"previous", rec.Expiration,
		"expiration", expiration,
	)

	return &UpdateResult{Outcome: OutcomeValid, Token: tok, Expiration: expiration}, nil
}

// ============================================================================
// ReadExpired
// ============================================================================

// ReadExpired looks a token up in the expired partition only.
// Records remain readable there indefinitely.
func (e *Engine) ReadExpired(ctx context.Context, tok string) (*LookupResult, error) {
	path, err := token.Path(tok)
	if err != nil {
		e.recorder.Lookup(OpReadExpired, OutcomeNotFound)
		return &LookupResult{Outcome: OutcomeNotFound}, nil
	}

	rec, err := e.store.Get(ctx, domain.PartitionExpired, path)
	if errors.Is(err, domain.ErrRecordNotFound) {
		e.recorder.Lookup(OpReadExpired, OutcomeNotFound)
		return &LookupResult{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	e.recorder.Lookup(OpReadExpired, OutcomeValid)
	return &LookupResult{
		Outcome:    OutcomeValid,
		Body:       rec.Body,
		Expiration: rec.Expiration,
	}, nil
}

// ============================================================================
// Internal helpers
// ============================================================================

// getActive loads the active record for tok. It returns (nil, nil) when the
// token is malformed or absent.
func (e *Engine) getActive(ctx context.Context, tok string) (*domain.Record, error) {
	path, err := token.Path(tok)
	if err != nil {
		return nil, nil
	}

	rec, err := e.store.Get(ctx, domain.PartitionActive, path)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return rec, nil
}

// archive copies rec into the expired partition and then removes it from the
// active partition. The two writes are not atomic: if the delete fails the
// record is present in both partitions until the next archival attempt.
func (e *Engine) archive(ctx context.Context, tok string, rec *domain.Record, trigger string) error {
	if err := e.store.Put(ctx, domain.PartitionExpired, rec); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	if err := e.store.Delete(ctx, domain.PartitionActive, rec.Path); err != nil {
		e.logger.WarnContext(ctx, "archived record left in active partition",
			"token_fp", token.Fingerprint(tok),
			"trigger", trigger,
			"error", err,
		)
		return domain.ErrStorage.WithCause(err)
	}

	e.recorder.Archived(trigger)
	e.logger.DebugContext(ctx, "token archived",
		"token_fp", token.Fingerprint(tok),
		"trigger", trigger,
	)
	return nil
}

// expirationAfter returns now+ttlSeconds as unix seconds, rejecting TTLs
// whose sum would overflow int64.
func expirationAfter(now time.Time, ttlSeconds int64) (int64, error) {
	base := now.Unix()
	if ttlSeconds <= 0 || ttlSeconds > math.MaxInt64-base {
		return 0, domain.ErrInvalidTTL.WithDetails(strconv.FormatInt(ttlSeconds, 10))
	}
	return base + ttlSeconds, nil
}
