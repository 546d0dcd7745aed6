package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/labelwatch/internal/model"
)

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	var buf bytes.Buffer
	rl := NewRateLimiter(config, newTestLogger(&buf))
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig(6)
	if cfg.Rate != rate.Limit(0.1) {
		t.Errorf("Rate = %v, want 0.1", cfg.Rate)
	}
	if cfg.Burst != 6 {
		t.Errorf("Burst = %d, want 6", cfg.Burst)
	}

	if got := DefaultRateLimiterConfig(0); got.Burst != 1 {
		t.Errorf("Burst = %d, want 1 for non-positive input", got.Burst)
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		Rate:            rate.Limit(1.0 / 60.0),
		Burst:           2,
		CleanupInterval: time.Minute,
	})

	calls := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("198.51.100.7:40000"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("198.51.100.7:40001"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

// TestRateLimiter_IndependentPerClient はクライアントIPごとに独立して制限されることを検証する。
func TestRateLimiter_IndependentPerClient(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		Rate:            rate.Limit(1.0 / 60.0),
		Burst:           1,
		CleanupInterval: time.Minute,
	})

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, addr := range []string{"192.0.2.1:1000", "192.0.2.2:1000"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(addr))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", addr, w.Code)
		}
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           1,
		CleanupInterval: time.Hour,
	})

	rl.limiterFor("192.0.2.1")
	rl.limiterFor("192.0.2.2")

	rl.cleanup(time.Now().Add(time.Hour))
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2 before TTL", rl.LimiterCount())
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount() = %d, want 0 after TTL", rl.LimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig(6))
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
