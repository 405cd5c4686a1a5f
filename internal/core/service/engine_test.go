package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/internal/core/service"
	"github.com/yndnr/tokstash-go/internal/storage/memory"
	"github.com/yndnr/tokstash-go/pkg/token"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore wraps a Store and fails selected calls.
type faultyStore struct {
	service.Store
	failGet    error
	failPut    map[domain.Partition]error
	failDelete error

	puts    atomic.Int64
	deletes atomic.Int64
}

func (f *faultyStore) Get(ctx context.Context, p domain.Partition, path string) (*domain.Record, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	return f.Store.Get(ctx, p, path)
}

func (f *faultyStore) Put(ctx context.Context, p domain.Partition, rec *domain.Record) error {
	f.puts.Add(1)
	if err := f.failPut[p]; err != nil {
		return err
	}
	return f.Store.Put(ctx, p, rec)
}

func (f *faultyStore) Delete(ctx context.Context, p domain.Partition, path string) error {
	f.deletes.Add(1)
	if f.failDelete != nil {
		return f.failDelete
	}
	return f.Store.Delete(ctx, p, path)
}

// countingRecorder records lifecycle events.
type countingRecorder struct {
	mu       sync.Mutex
	created  int
	updated  int
	lookups  map[string]int
	archived map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{lookups: map[string]int{}, archived: map[string]int{}}
}

func (r *countingRecorder) TokenCreated() { r.mu.Lock(); r.created++; r.mu.Unlock() }
func (r *countingRecorder) Updated()      { r.mu.Lock(); r.updated++; r.mu.Unlock() }
func (r *countingRecorder) Lookup(op string, o service.Outcome) {
	r.mu.Lock()
	r.lookups[op+"/"+o.String()]++
	r.mu.Unlock()
}
func (r *countingRecorder) Archived(trigger string) {
	r.mu.Lock()
	r.archived[trigger]++
	r.mu.Unlock()
}

type fixture struct {
	engine *service.Engine
	store  *memory.Store
	clock  *fakeClock
	rec    *countingRecorder
}

func newFixture(t *testing.T, opts ...service.EngineOption) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		clock: newFakeClock(),
		rec:   newCountingRecorder(),
	}
	opts = append([]service.EngineOption{
		service.WithClock(f.clock.Now),
		service.WithRecorder(f.rec),
	}, opts...)
	f.engine = service.NewEngine(f.store, opts...)
	return f
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

// ============================================================================
// Create / Validate
// ============================================================================

func TestEngine_CreateThenValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"user": "alice", "n": 7}, 60)
	require.NoError(t, err)
	assert.True(t, token.IsWellFormed(created.Token))
	assert.Equal(t, f.clock.Now().Unix()+60, created.Expiration)

	res, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, service.OutcomeValid, res.Outcome)
	assert.NoError(t, res.Err())

	body := decode(t, res.Body)
	assert.Equal(t, "alice", body["user"])
	assert.EqualValues(t, 7, body["n"])
	assert.EqualValues(t, created.Expiration, body["expiration"])

	assert.Equal(t, 1, f.rec.created)
	assert.Equal(t, 1, f.rec.lookups["validate/valid"])
}

func TestEngine_CreateOverridesCallerExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"expiration": 1}, 10)
	require.NoError(t, err)

	res, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.EqualValues(t, created.Expiration, decode(t, res.Body)["expiration"])
}

func TestEngine_CreateNilPayload(t *testing.T) {
	f := newFixture(t)

	created, err := f.engine.Create(context.Background(), nil, 10)
	require.NoError(t, err)

	res, err := f.engine.Validate(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Len(t, decode(t, res.Body), 1)
}

func TestEngine_CreateRejectsTTL(t *testing.T) {
	for _, ttl := range []int64{0, -1} {
		t.Run(fmt.Sprintf("ttl=%d", ttl), func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.Create(context.Background(), domain.Payload{}, ttl)
			require.ErrorIs(t, err, domain.ErrInvalidTTL)
			assert.True(t, domain.IsCallerError(err))
			assert.Zero(t, f.store.Count(domain.PartitionActive))
		})
	}
}

func TestEngine_CreateRejectsOverflowingTTL(t *testing.T) {
	base := newFakeClock().Now().Unix()
	for _, ttl := range []int64{math.MaxInt64, math.MaxInt64 - base + 1} {
		t.Run(fmt.Sprintf("ttl=%d", ttl), func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.Create(context.Background(), domain.Payload{}, ttl)
			require.ErrorIs(t, err, domain.ErrInvalidTTL)
			assert.Zero(t, f.store.Count(domain.PartitionActive))
			assert.Zero(t, f.rec.created)
		})
	}
}

func TestEngine_CreateLargestTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ttl := math.MaxInt64 - f.clock.Now().Unix()

	created, err := f.engine.Create(ctx, nil, ttl)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), created.Expiration)

	f.clock.Advance(100 * 365 * 24 * time.Hour)
	res, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeValid, res.Outcome)
}

func TestEngine_CreateGeneratorFailure(t *testing.T) {
	f := newFixture(t, service.WithGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))

	_, err := f.engine.Create(context.Background(), nil, 10)
	require.ErrorIs(t, err, domain.ErrInternalServer)
}

func TestEngine_CreateUsesGeneratorAndPath(t *testing.T) {
	const tok = "abcdef12-0000-4000-8000-000000000000"
	f := newFixture(t, service.WithGenerator(func() (string, error) { return tok, nil }))
	ctx := context.Background()

	created, err := f.engine.Create(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, tok, created.Token)

	rec, err := f.store.Get(ctx, domain.PartitionActive, "ab/cd/"+tok)
	require.NoError(t, err)
	assert.Equal(t, created.Expiration, rec.Expiration)
}

func TestEngine_ValidateBoundary(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		want    service.Outcome
	}{
		{"one second before expiry", 59 * time.Second, service.OutcomeValid},
		{"exactly at expiry", 60 * time.Second, service.OutcomeExpired},
		{"after expiry", 61 * time.Second, service.OutcomeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			created, err := f.engine.Create(ctx, domain.Payload{"a": 1}, 60)
			require.NoError(t, err)

			f.clock.Advance(tt.advance)
			res, err := f.engine.Validate(ctx, created.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}
}

func TestEngine_ValidateExpiredArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"a": 1}, 5)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	res, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeExpired, res.Outcome)
	assert.Nil(t, res.Body)
	assert.ErrorIs(t, res.Err(), domain.ErrTokenExpired)

	assert.Zero(t, f.store.Count(domain.PartitionActive))
	assert.Equal(t, 1, f.store.Count(domain.PartitionExpired))

	// A second validate no longer finds the token
	res, err = f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeNotFound, res.Outcome)

	// The archive keeps the original body and expiration
	archived, err := f.engine.ReadExpired(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, service.OutcomeValid, archived.Outcome)
	assert.Equal(t, created.Expiration, archived.Expiration)
	assert.EqualValues(t, 1, decode(t, archived.Body)["a"])

	assert.Equal(t, 1, f.rec.archived[service.OpValidate])
}

func TestEngine_ValidateUnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tok := range []string{"", "abc", "00000000-0000-4000-8000-000000000000"} {
		res, err := f.engine.Validate(ctx, tok)
		require.NoError(t, err, "token %q", tok)
		assert.Equal(t, service.OutcomeNotFound, res.Outcome, "token %q", tok)
		assert.ErrorIs(t, res.Err(), domain.ErrTokenNotFound)
	}
}

// ============================================================================
// Expire
// ============================================================================

func TestEngine_Expire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"a": 1}, 3600)
	require.NoError(t, err)

	res, err := f.engine.Expire(ctx, created.Token)
	require.NoError(t, err)
	assert.True(t, res.Archived)

	v, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeNotFound, v.Outcome)

	archived, err := f.engine.ReadExpired(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeValid, archived.Outcome)
	// Manual expiry keeps the future expiration
	assert.Equal(t, created.Expiration, archived.Expiration)
}

func TestEngine_ExpireIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, nil, 3600)
	require.NoError(t, err)

	first, err := f.engine.Expire(ctx, created.Token)
	require.NoError(t, err)
	second, err := f.engine.Expire(ctx, created.Token)
	require.NoError(t, err)

	assert.True(t, first.Archived)
	assert.False(t, second.Archived)
	assert.Equal(t, 1, f.store.Count(domain.PartitionExpired))
}

func TestEngine_ExpireUnknownSucceeds(t *testing.T) {
	f := newFixture(t)

	for _, tok := range []string{"x", "ffffffff-ffff-4fff-bfff-ffffffffffff"} {
		res, err := f.engine.Expire(context.Background(), tok)
		require.NoError(t, err)
		assert.False(t, res.Archived)
	}
	assert.Zero(t, f.store.Count(domain.PartitionExpired))
}

// ============================================================================
// Update
// ============================================================================

func TestEngine_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"user": "bob"}, 60)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	res, err := f.engine.Update(ctx, created.Token, 120)
	require.NoError(t, err)
	require.Equal(t, service.OutcomeValid, res.Outcome)
	assert.Equal(t, created.Token, res.Token)
	assert.Equal(t, f.clock.Now().Unix()+120, res.Expiration)

	v, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	body := decode(t, v.Body)
	assert.Equal(t, "bob", body["user"])
	assert.Equal(t, fmt.Sprint(created.Expiration), body["original_expiration"])
	assert.Equal(t, "120", body["expiration_seconds"])
	assert.EqualValues(t, res.Expiration, body["expiration"])

	// The new expiration governs validity
	f.clock.Advance(100 * time.Second)
	v, err = f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeValid, v.Outcome)

	assert.Equal(t, 1, f.rec.updated)
}

func TestEngine_UpdateLastWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, nil, 60)
	require.NoError(t, err)

	first, err := f.engine.Update(ctx, created.Token, 100)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.engine.Update(ctx, created.Token, 10)
	require.NoError(t, err)

	v, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	body := decode(t, v.Body)
	assert.Equal(t, fmt.Sprint(first.Expiration), body["original_expiration"])
	assert.Equal(t, "10", body["expiration_seconds"])
	assert.EqualValues(t, second.Expiration, body["expiration"])
}

func TestEngine_UpdateRejectsTTLBeforeLookup(t *testing.T) {
	store := &faultyStore{Store: memory.New(), failGet: errors.New("must not be called")}
	engine := service.NewEngine(store)

	_, err := engine.Update(context.Background(), "ab/cd", 0)
	require.ErrorIs(t, err, domain.ErrInvalidTTL)
}

func TestEngine_UpdateRejectsOverflowingTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"user": "bob"}, 60)
	require.NoError(t, err)

	_, err = f.engine.Update(ctx, created.Token, math.MaxInt64-5)
	require.ErrorIs(t, err, domain.ErrInvalidTTL)
	assert.Zero(t, f.rec.updated)

	v, err := f.engine.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Expiration, v.Expiration)
	body := decode(t, v.Body)
	assert.NotContains(t, body, "original_expiration")
}

func TestEngine_UpdateUnknown(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Update(context.Background(), "00000000-0000-4000-8000-000000000000", 10)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeNotFound, res.Outcome)
	assert.ErrorIs(t, res.Err(), domain.ErrTokenNotFound)
	assert.Zero(t, f.store.Count(domain.PartitionActive))
}

func TestEngine_UpdateExpiredArchivesInstead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, nil, 10)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	res, err := f.engine.Update(ctx, created.Token, 3600)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeExpired, res.Outcome)
	assert.Zero(t, res.Expiration)

	assert.Zero(t, f.store.Count(domain.PartitionActive))
	archived, err := f.engine.ReadExpired(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Expiration, archived.Expiration)
	assert.Equal(t, 1, f.rec.archived[service.OpUpdate])
}

func TestEngine_UpdateCorruptedBody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const tok = "abcdef12-0000-4000-8000-000000000000"
	require.NoError(t, f.store.Put(ctx, domain.PartitionActive, &domain.Record{
		Path:       token.MustPath(tok),
		Body:       []byte("not json"),
		Expiration: f.clock.Now().Unix() + 60,
	}))

	_, err := f.engine.Update(ctx, tok, 10)
	require.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, domain.ErrRecordCorrupted)
}

// ============================================================================
// ReadExpired
// ============================================================================

func TestEngine_ReadExpiredIgnoresActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, nil, 60)
	require.NoError(t, err)

	res, err := f.engine.ReadExpired(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeNotFound, res.Outcome)

	res, err = f.engine.ReadExpired(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeNotFound, res.Outcome)
}

func TestEngine_ReadExpiredIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, nil, 1)
	require.NoError(t, err)
	_, err = f.engine.Expire(ctx, created.Token)
	require.NoError(t, err)

	f.clock.Advance(365 * 24 * time.Hour)
	for i := 0; i < 3; i++ {
		res, err := f.engine.ReadExpired(ctx, created.Token)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeValid, res.Outcome)
	}
}

// ============================================================================
// Storage failures
// ============================================================================

func TestEngine_StorageFailures(t *testing.T) {
	boom := errors.New("backend down")
	ctx := context.Background()

	t.Run("create put", func(t *testing.T) {
		store := &faultyStore{Store: memory.New(), failPut: map[domain.Partition]error{domain.PartitionActive: boom}}
		_, err := service.NewEngine(store).Create(ctx, nil, 10)
		require.ErrorIs(t, err, domain.ErrStorage)
		assert.ErrorIs(t, err, boom)
		assert.False(t, domain.IsCallerError(err))
	})

	t.Run("validate get", func(t *testing.T) {
		store := &faultyStore{Store: memory.New(), failGet: boom}
		_, err := service.NewEngine(store).Validate(ctx, "abcd-token")
		require.ErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("read expired get", func(t *testing.T) {
		store := &faultyStore{Store: memory.New(), failGet: boom}
		_, err := service.NewEngine(store).ReadExpired(ctx, "abcd-token")
		require.ErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("archive put leaves active intact", func(t *testing.T) {
		mem := memory.New()
		store := &faultyStore{Store: mem, failPut: map[domain.Partition]error{domain.PartitionExpired: boom}}
		engine := service.NewEngine(store)

		created, err := engine.Create(ctx, nil, 10)
		require.NoError(t, err)

		_, err = engine.Expire(ctx, created.Token)
		require.ErrorIs(t, err, domain.ErrStorage)
		assert.Equal(t, 1, mem.Count(domain.PartitionActive))
		assert.Zero(t, mem.Count(domain.PartitionExpired))
		assert.Zero(t, store.deletes.Load())
	})

	t.Run("archive delete leaves both copies", func(t *testing.T) {
		mem := memory.New()
		store := &faultyStore{Store: mem, failDelete: boom}
		engine := service.NewEngine(store)

		created, err := engine.Create(ctx, nil, 10)
		require.NoError(t, err)

		_, err = engine.Expire(ctx, created.Token)
		require.ErrorIs(t, err, domain.ErrStorage)
		assert.Equal(t, 1, mem.Count(domain.PartitionActive))
		assert.Equal(t, 1, mem.Count(domain.PartitionExpired))

		// A later archive converges once the backend recovers
		store.failDelete = nil
		res, err := engine.Expire(ctx, created.Token)
		require.NoError(t, err)
		assert.True(t, res.Archived)
		assert.Zero(t, mem.Count(domain.PartitionActive))
		assert.Equal(t, 1, mem.Count(domain.PartitionExpired))
	})
}

// ============================================================================
// Concurrency
// ============================================================================

func TestEngine_ConcurrentValidateOfExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.engine.Create(ctx, domain.Payload{"a": 1}, 1)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	outcomes := make([]service.Outcome, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.engine.Validate(ctx, created.Token)
			errs[i] = err
			if err == nil {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.NotEqual(t, service.OutcomeValid, outcomes[i])
	}

	assert.Zero(t, f.store.Count(domain.PartitionActive))
	assert.Equal(t, 1, f.store.Count(domain.PartitionExpired))

	archived, err := f.engine.ReadExpired(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Expiration, archived.Expiration)
}

func TestEngine_ValidateRacingExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens := make([]string, 50)
	for i := range tokens {
		created, err := f.engine.Create(ctx, domain.Payload{"i": i}, 3600)
		require.NoError(t, err)
		tokens[i] = created.Token
	}

	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(2)
		go func(tok string) {
			defer wg.Done()
			_, err := f.engine.Expire(ctx, tok)
			assert.NoError(t, err)
		}(tok)
		go func(tok string) {
			defer wg.Done()
			res, err := f.engine.Validate(ctx, tok)
			if assert.NoError(t, err) {
				assert.NotEqual(t, service.OutcomeExpired, res.Outcome)
			}
		}(tok)
	}
	wg.Wait()

	assert.Zero(t, f.store.Count(domain.PartitionActive))
	assert.Equal(t, len(tokens), f.store.Count(domain.PartitionExpired))
}

func TestEngine_ConcurrentCreateDistinctTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := f.engine.Create(ctx, nil, 60)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[created.Token] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.Equal(t, n, f.store.Count(domain.PartitionActive))
}

func BenchmarkEngine_CreateValidate(b *testing.B) {
	engine := service.NewEngine(memory.New())
	ctx := context.Background()
	payload := domain.Payload{"user": "bench"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		created, err := engine.Create(ctx, payload, 60)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := engine.Validate(ctx, created.Token); err != nil {
			b.Fatal(err)
		}
	}
}
