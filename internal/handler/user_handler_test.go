package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wearly/wearly/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// mockProfileService はProfileServiceInterfaceのモック実装。
type mockProfileService struct {
	profileFn           func(ctx context.Context, userID string) (*model.User, error)
	setPreferredStyleFn func(ctx context.Context, userID, style string) error
}

func (m *mockProfileService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockProfileService) SetPreferredStyle(ctx context.Context, userID, style string) error {
	if m.setPreferredStyleFn != nil {
		return m.setPreferredStyleFn(ctx, userID, style)
	}
	return nil
}

// --- GET /api/users/me テスト ---

func TestUserHandler_Me(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, &mockProfileService{
		profileFn: func(ctx context.Context, userID string) (*model.User, error) {
			return &model.User{ID: userID, Email: "a@example.com", Name: "Aki", PreferredStyle: "casual"}, nil
		},
	})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "user-123" || resp.PreferredStyle != "casual" || resp.NeedsPreferenceSelection {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Birthdate != nil {
		t.Errorf("birthdate = %v, want nil", *resp.Birthdate)
	}
}

func TestUserHandler_Me_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, &mockProfileService{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	assertError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

// --- PUT /api/users/me/preferred-style テスト ---

func TestUserHandler_UpdatePreferredStyle(t *testing.T) {
	var gotStyle string
	h := NewUserHandler(&mockUserService{}, &mockProfileService{
		setPreferredStyleFn: func(ctx context.Context, userID, style string) error {
			gotStyle = style
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPut, "/api/users/me/preferred-style", strings.NewReader(`{"style":"street"}`))
	w := httptest.NewRecorder()
	h.UpdatePreferredStyle(w, withUserID(req, "user-123"))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if gotStyle != "street" {
		t.Errorf("style = %q, want street", gotStyle)
	}
}

func TestUserHandler_UpdatePreferredStyle_Blank(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, &mockProfileService{})

	req := httptest.NewRequest(http.MethodPut, "/api/users/me/preferred-style", strings.NewReader(`{"style":" "}`))
	w := httptest.NewRecorder()
	h.UpdatePreferredStyle(w, withUserID(req, "user-123"))

	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

// --- DELETE /api/users/me テスト ---

func TestUserHandler_Withdraw_Success(t *testing.T) {
	withdrawCalled := false
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawCalled = true
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return nil
		},
	}
	h := NewUserHandler(svc, &mockProfileService{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !withdrawCalled {
		t.Error("expected Withdraw to be called")
	}
}

func TestUserHandler_Withdraw_UserNotFound(t *testing.T) {
	h := NewUserHandler(&mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return model.NewUserNotFoundError()
		},
	}, &mockProfileService{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	assertError(t, w, http.StatusNotFound, model.ErrCodeUserNotFound)
}

func TestUserHandler_Withdraw_InternalError(t *testing.T) {
	h := NewUserHandler(&mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return errors.New("database connection lost")
		},
	}, &mockProfileService{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	assertError(t, w, http.StatusInternalServerError, "INTERNAL_ERROR")
}
