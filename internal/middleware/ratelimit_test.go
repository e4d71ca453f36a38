package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/runquest/internal/guard"
	"github.com/hitoshi/runquest/internal/model"
)

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

// バースト内のリクエストが許可されることを検証
func TestRateLimiter_General_WithinBurst_Allowed(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralBurst = 3
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
		req.RemoteAddr = "203.0.113.10:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

// バーストを超えたリクエストが429とRetry-Afterを返すことを検証
func TestRateLimiter_General_ExceedsBurst_TooManyRequests(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(1.0 / 60.0)
	config.GeneralBurst = 1
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req.RemoteAddr = "203.0.113.10:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req2.RemoteAddr = "203.0.113.10:12345"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want %d", rec2.Code, http.StatusTooManyRequests)
	}
	if rec2.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec2.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
}

// 別IPのクライアントは別枠で数えられることを検証
func TestRateLimiter_General_SeparateIPs_SeparateBudgets(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(1.0 / 60.0)
	config.GeneralBurst = 1
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req.RemoteAddr = "203.0.113.10:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	req2 := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req2.RemoteAddr = "203.0.113.99:12345"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want %d", rec2.Code, http.StatusOK)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

// 認証済みリクエストがセッションID単位で数えられることを検証
func TestRateLimiter_General_AuthenticatedKeyedBySession(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(1.0 / 60.0)
	config.GeneralBurst = 1
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 同一IPでもセッションが異なれば別枠
	for _, sessID := range []string{"sess-a", "sess-b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
		req.RemoteAddr = "203.0.113.10:12345"
		sess := &model.Session{ID: sessID}
		req = req.WithContext(guard.ContextWithSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("session %s: status = %d, want %d", sessID, rec.Code, http.StatusOK)
		}
	}
}

// X-Forwarded-Forの先頭IPが使用されることを検証
func TestRateLimiter_ClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	if got := clientIP(req); got != "198.51.100.1" {
		t.Errorf("clientIP = %q, want 198.51.100.1", got)
	}
}

// サインインリミッターがバースト超過で429を返すことを検証
func TestRateLimiter_SignIn_ExceedsBurst_TooManyRequests(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.SignInRate = rate.Limit(1.0 / 60.0)
	config.SignInBurst = 2
	rl := newTestRateLimiter(t, config)

	handler := rl.SignInMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
		req.RemoteAddr = "203.0.113.10:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("third attempt: status = %d, want %d", lastCode, http.StatusTooManyRequests)
	}
}

// クリーンアップが古いエントリを削除することを検証
func TestRateLimiter_Cleanup_RemovesStaleEntries(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := newTestRateLimiter(t, config)

	getOrCreate(&rl.generalMu, rl.generalLimiters, "ip:203.0.113.10", config.GeneralRate, config.GeneralBurst)
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	// lastAccessをTTLより古くしてクリーンアップを直接実行
	rl.generalMu.Lock()
	rl.generalLimiters["ip:203.0.113.10"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("limiter count after cleanup = %d, want 0", rl.GeneralLimiterCount())
	}
}
