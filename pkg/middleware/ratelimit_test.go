package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_PerCaller(t *testing.T) {
	store := newVisitorStore(1, 2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }

	h := Identity(rateLimit(store, discardLogger())(http.HandlerFunc(okHandler)))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		if user != "" {
			req.Header.Set(HeaderUserID, user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("u-1").Code)
	assert.Equal(t, http.StatusOK, send("u-1").Code)

	rec := send("u-1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeEnvelope(t, rec).Error.Code)

	// Another user and a guest have their own buckets.
	assert.Equal(t, http.StatusOK, send("u-2").Code)
	assert.Equal(t, http.StatusOK, send("").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, send("u-1").Code, "bucket refills over time")
}

func TestRateLimit_SweepsIdleCallers(t *testing.T) {
	store := newVisitorStore(5, 5, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }

	store.allow("user:a")
	store.allow("user:b")
	assert.Equal(t, 2, store.len())

	now = now.Add(2 * time.Minute)
	store.allow("user:c")
	assert.Equal(t, 1, store.len())
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0, 0, discardLogger())(http.HandlerFunc(okHandler))
	for range 50 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:5000", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.2:5000", want: "198.51.100.4"},
		{name: "garbage forwarded header", headers: map[string]string{"X-Forwarded-For": "nope"}, remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote addr", remote: "192.0.2.9:443", want: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
