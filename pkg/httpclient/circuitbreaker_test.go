package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      100 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func noRetryClient() *Client {
	return New(Config{Timeout: 5 * time.Second, MaxConnsPerHost: 4})
}

func TestCircuitBreaker_PostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"order_id":"o-1"}`, string(body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cb := NewCircuitBreakerClient(noRetryClient(), testCBConfig("cb-ok"), testLogger())

	resp, err := cb.PostJSON(context.Background(), server.URL, map[string]string{"order_id": "o-1"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.NoError(t, cb.Check(context.Background()))
}

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cb := NewCircuitBreakerClient(noRetryClient(), testCBConfig("cb-trip"), testLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.PostJSON(context.Background(), server.URL, struct{}{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.PostJSON(context.Background(), server.URL, struct{}{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, cb.Check(context.Background()), ErrCircuitOpen)

	time.Sleep(150 * time.Millisecond)
	failing.Store(false)

	resp, err := cb.PostJSON(context.Background(), server.URL, struct{}{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_4xxNotCounted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	cb := NewCircuitBreakerClient(noRetryClient(), testCBConfig("cb-4xx"), testLogger())

	for i := 0; i < 5; i++ {
		resp, err := cb.PostJSON(context.Background(), server.URL, struct{}{})
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_UnmarshalablePayload(t *testing.T) {
	cb := NewCircuitBreakerClient(noRetryClient(), testCBConfig("cb-bad"), testLogger())

	_, err := cb.PostJSON(context.Background(), "http://127.0.0.1:1", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal request body")
}
