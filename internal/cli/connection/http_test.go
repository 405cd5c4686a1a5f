package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokstash-go/internal/core/service"
	"github.com/yndnr/tokstash-go/internal/server/httpserver/handler"
	"github.com/yndnr/tokstash-go/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := handler.New(service.NewEngine(memory.New()), handler.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:8080", "http://localhost:8080"},
		{"with https prefix", "https://localhost:8080", "https://localhost:8080"},
		{"without prefix", "localhost:8080", "http://localhost:8080"},
		{"trailing slash", "http://localhost:8080/", "http://localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.server, 0)
			assert.Equal(t, tt.wantPrefix, client.BaseURL())
			assert.Equal(t, DefaultTimeout, client.client.Timeout)
		})
	}
}

func TestHTTPClient_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, time.Second)
	ctx := context.Background()

	created, err := c.Create(ctx, map[string]any{"user": "alice", "n": 3}, 60)
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)

	body, err := c.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", body["user"])
	assert.Equal(t, json.Number("3"), body["n"])
	assert.Contains(t, body, "expiration")

	upd, err := c.Update(ctx, created.Token, 120)
	require.NoError(t, err)
	assert.Equal(t, created.Token, upd.Token)
	assert.NotZero(t, upd.Expiration)

	_, err = c.GetExpired(ctx, created.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, c.Expire(ctx, created.Token))

	_, err = c.Validate(ctx, created.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusGone, apiErr.Status)

	archived, err := c.GetExpired(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", archived["user"])
}

func TestHTTPClient_CallerError(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, time.Second)

	_, err := c.Create(context.Background(), nil, 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.False(t, errors.Is(err, ErrInvalidToken))
}

func TestHTTPClient_Diagnostic(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, time.Second)

	diag, err := c.Diagnostic(context.Background())
	require.NoError(t, err)
	assert.Contains(t, diag, "process_start_time")
	assert.Contains(t, diag, "process_uptime_secs")
}

func TestHTTPClient_InternalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal server error","eid":"e-1"}`))
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, time.Second).Expire(context.Background(), "t")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "e-1", apiErr.EID)
	assert.Equal(t, "internal server error (status 500, eid e-1)", err.Error())
}

func TestHTTPClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Diagnostic(context.Background())
	assert.EqualError(t, err, "Bad Gateway (status 502)")
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPClient(addr, time.Second).Validate(context.Background(), "t")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
