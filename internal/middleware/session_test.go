package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockAuthenticator struct {
	authenticateFn func(token string) (string, error)
}

func (m *mockAuthenticator) Authenticate(token string) (string, error) {
	return m.authenticateFn(token)
}

func validTokenAuth() *mockAuthenticator {
	return &mockAuthenticator{authenticateFn: func(token string) (string, error) {
		if token == "valid-token" {
			return "user-123", nil
		}
		return "", errors.New("invalid token")
	}}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	var captured string
	handler := NewAuthMiddleware(validTokenAuth())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/garments", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if captured != "user-123" {
		t.Errorf("userID = %q, want user-123", captured)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"Bearerなし", "valid-token"},
		{"別スキーム", "Basic dXNlcjpwYXNz"},
		{"空トークン", "Bearer "},
		{"不正トークン", "Bearer invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAuthMiddleware(validTokenAuth())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/garments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called {
				t.Error("次のハンドラーが呼ばれました")
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != "UNAUTHORIZED" {
				t.Errorf("code = %q, want UNAUTHORIZED", body.Code)
			}
		})
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	if got := BearerToken(req); got != "abc" {
		t.Errorf("BearerToken() = %q, want abc", got)
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	ctx := ContextWithUserID(context.Background(), "user-1")
	if got, err := UserIDFromContext(ctx); err != nil || got != "user-1" {
		t.Errorf("UserIDFromContext() = %q, %v", got, err)
	}
}
