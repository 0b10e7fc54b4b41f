package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// TestRouterIntegration_Chain はchi.Router上でロギング・認証・レート制限が連携することを検証する。
func TestRouterIntegration_Chain(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(RateLimiterConfig{GeneralPerMinute: 1, GarmentRegPerMinute: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(newTestLogger(&buf)))
	r.Use(NewLoggingMiddleware(newTestLogger(&buf), nil))
	r.Group(func(r chi.Router) {
		r.Use(NewAuthMiddleware(validTokenAuth()))
		r.Use(rl.GeneralMiddleware())
		r.Get("/api/garments", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/garments", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(""); code != http.StatusUnauthorized {
		t.Errorf("未認証: status = %d, want 401", code)
	}
	if code := send("valid-token"); code != http.StatusOK {
		t.Errorf("1回目: status = %d, want 200", code)
	}
	if code := send("valid-token"); code != http.StatusTooManyRequests {
		t.Errorf("2回目: status = %d, want 429", code)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"user_id":"user-123"`)) {
		t.Errorf("アクセスログにuser_idがありません: %s", buf.String())
	}
}
