// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/repository"
)

// SessionDropper はユーザーのおすすめセッションを破棄するインターフェース。
type SessionDropper interface {
	Drop(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	sessions SessionDropper
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sessions SessionDropper) *Service {
	return &Service{
		userRepo: userRepo,
		sessions: sessions,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: おすすめセッション（メモリ上） → user（+ CASCADE: garments, style_preferences）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. メモリ上のセッションを破棄
	if s.sessions != nil {
		if err := s.sessions.Drop(ctx, userID); err != nil {
			return fmt.Errorf("セッションの破棄に失敗しました: %w", err)
		}
	}

	// 2. ユーザーを削除（garments, style_preferencesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
