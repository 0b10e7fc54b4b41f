// Package auth はアカウント登録・ログイン・アクセストークンの発行と検証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/repository"
	"github.com/wearly/wearly/internal/security"
)

// SignupInput はアカウント登録の入力。
type SignupInput struct {
	Email     string
	Password  string
	Name      string
	Gender    string
	Birthdate *time.Time
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token                    string
	ExpiresAt                time.Time
	UserID                   string
	NeedsPreferenceSelection bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	tokens     *TokenManager
	sanitizer  security.LabelSanitizer
	bcryptCost int
	logger     *slog.Logger
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:   userRepo,
		tokens:     tokens,
		sanitizer:  security.NewLabelSanitizer(),
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
}

// Signup はアカウントを登録する。
// 登録済みのメールアドレスの場合はEmailTakenErrorを返す。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	name := s.sanitizer.Sanitize(in.Name)
	if name == "" {
		return nil, model.NewValidationError("名前を指定してください")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Gender:       in.Gender,
		Birthdate:    in.Birthdate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 検索と作成の間に同じメールアドレスが登録された場合
		if repository.IsUniqueViolation(err) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	s.logger.Info("user signed up", slog.String("user_id", user.ID))
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、アクセストークンを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := checkPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("login failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	return &LoginResult{
		Token:                    token,
		ExpiresAt:                expiresAt,
		UserID:                   user.ID,
		NeedsPreferenceSelection: user.NeedsPreferenceSelection(),
	}, nil
}

// Authenticate はアクセストークンを検証してユーザーIDを返す。
func (s *Service) Authenticate(token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", model.NewUnauthorizedError()
	}
	return userID, nil
}

// Profile はユーザーのプロフィールを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// SetPreferredStyle は初回ログイン時に選択した好みのスタイルを保存する。
func (s *Service) SetPreferredStyle(ctx context.Context, userID, style string) error {
	style = s.sanitizer.Sanitize(style)
	if style == "" {
		return model.NewValidationError("スタイルを指定してください")
	}

	ok, err := s.userRepo.UpdatePreferredStyle(ctx, userID, style)
	if err != nil {
		return fmt.Errorf("好みのスタイルの更新に失敗しました: %w", err)
	}
	if !ok {
		return model.NewUserNotFoundError()
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
