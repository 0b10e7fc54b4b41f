package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/wearly/wearly/internal/auth"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/validation"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AuthHandler はアカウント登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// signupRequest はアカウント登録リクエストのボディ。
// birthdateはYYYY-MM-DD形式。
type signupRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Name      string `json:"name" validate:"notblank,max=100"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other"`
	Birthdate string `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID                       string  `json:"id"`
	Email                    string  `json:"email"`
	Name                     string  `json:"name"`
	Gender                   string  `json:"gender,omitempty"`
	Birthdate                *string `json:"birthdate,omitempty"`
	PreferredStyle           string  `json:"preferred_style,omitempty"`
	NeedsPreferenceSelection bool    `json:"needs_preference_selection"`
}

// loginResponse はログイン成功時のAPIレスポンス。
type loginResponse struct {
	Token                    string    `json:"token"`
	ExpiresAt                time.Time `json:"expires_at"`
	UserID                   string    `json:"user_id"`
	NeedsPreferenceSelection bool      `json:"needs_preference_selection"`
}

func toUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:                       u.ID,
		Email:                    u.Email,
		Name:                     u.Name,
		Gender:                   u.Gender,
		PreferredStyle:           u.PreferredStyle,
		NeedsPreferenceSelection: u.NeedsPreferenceSelection(),
	}
	if u.Birthdate != nil {
		s := u.Birthdate.Format(time.DateOnly)
		resp.Birthdate = &s
	}
	return resp
}

// Signup はアカウントを登録する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	in := auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Gender:   req.Gender,
	}
	if req.Birthdate != "" {
		// 形式はバリデーション済み
		t, _ := time.Parse(time.DateOnly, req.Birthdate)
		in.Birthdate = &t
	}

	user, err := h.service.Signup(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:                    result.Token,
		ExpiresAt:                result.ExpiresAt,
		UserID:                   result.UserID,
		NeedsPreferenceSelection: result.NeedsPreferenceSelection,
	})
}
