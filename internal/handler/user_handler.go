package handler

import (
	"context"
	"net/http"

	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/validation"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// おすすめセッションを破棄し、衣服とスタイル別集計も削除する。
	Withdraw(ctx context.Context, userID string) error
}

// ProfileServiceInterface はプロフィール参照と好みのスタイル更新のインターフェース。
type ProfileServiceInterface interface {
	Profile(ctx context.Context, userID string) (*model.User, error)
	SetPreferredStyle(ctx context.Context, userID, style string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	profiles ProfileServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, profiles ProfileServiceInterface) *UserHandler {
	return &UserHandler{
		service:  service,
		profiles: profiles,
	}
}

// preferredStyleRequest は好みのスタイル更新リクエストのボディ。
type preferredStyleRequest struct {
	Style string `json:"style" validate:"notblank,max=64"`
}

// Me はログインユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdatePreferredStyle は初回ログイン時に選ぶ好みのスタイルを更新する。
// PUT /api/users/me/preferred-style
func (h *UserHandler) UpdatePreferredStyle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req preferredStyleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.profiles.SetPreferredStyle(r.Context(), userID, req.Style); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
