// Package closet はユーザーのクローゼット（衣服）の登録・一覧・ラベル修正・削除を提供する。
package closet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/wearly/wearly/internal/inference"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/repository"
	"github.com/wearly/wearly/internal/security"
)

// Predictor は衣服画像からスタイルとカテゴリを予測する。
type Predictor interface {
	Predict(ctx context.Context, imageURL string) (*inference.Prediction, error)
}

// Recomputer はユーザーのスタイル別集計を再計算する。
type Recomputer interface {
	Recompute(ctx context.Context, userID string) error
}

// SessionForgetter は削除された衣服をおすすめセッションから取り除く。
type SessionForgetter interface {
	Forget(ctx context.Context, userID, garmentID string) error
}

// CreateInput は衣服登録の入力。CategoryとStyleは省略時に予測器で補完する。
type CreateInput struct {
	ImageURL string
	Category string
	Style    string
}

// LabelsInput はラベル修正の入力。nilのフィールドは変更しない。
type LabelsInput struct {
	Category *string
	Style    *string
}

// Service はクローゼット操作のビジネスロジックを提供する。
type Service struct {
	garments   repository.GarmentRepository
	guard      security.SSRFGuardService
	sanitizer  security.LabelSanitizer
	predictor  Predictor
	recomputer Recomputer
	sessions   SessionForgetter
	baseURL    string
	logger     *slog.Logger
}

// NewService はServiceを生成する。predictorがnilの場合、カテゴリの省略はできない。
func NewService(
	garments repository.GarmentRepository,
	guard security.SSRFGuardService,
	sanitizer security.LabelSanitizer,
	predictor Predictor,
	recomputer Recomputer,
	sessions SessionForgetter,
	baseURL string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		garments:   garments,
		guard:      guard,
		sanitizer:  sanitizer,
		predictor:  predictor,
		recomputer: recomputer,
		sessions:   sessions,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Create は衣服を登録する。スコアは0から始まる。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Garment, error) {
	imageURL := strings.TrimSpace(in.ImageURL)
	if err := s.guard.ValidateURL(imageURL); err != nil {
		if errors.Is(err, security.ErrBlockedURL) {
			s.logger.Warn("blocked garment image url",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	category := s.sanitizer.Sanitize(in.Category)
	style := s.sanitizer.Sanitize(in.Style)

	if category == "" || (style == "" && s.predictor != nil) {
		predicted, err := s.predict(ctx, imageURL)
		switch {
		case err != nil && category == "":
			return nil, err
		case err != nil:
			// カテゴリは指定済みのため、スタイルは空のまま登録する
			s.logger.Warn("style prediction failed, storing without style",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		default:
			if category == "" {
				category = s.sanitizer.Sanitize(predicted.Category)
			}
			if style == "" {
				style = s.sanitizer.Sanitize(predicted.Style)
			}
		}
	}
	if category == "" {
		return nil, model.NewPredictionFailedError("カテゴリを判定できませんでした")
	}

	now := time.Now()
	garment := &model.Garment{
		UserID:    userID,
		ImageURL:  imageURL,
		Category:  category,
		Style:     style,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.garments.Create(ctx, garment); err != nil {
		return nil, fmt.Errorf("衣服の登録に失敗しました: %w", err)
	}

	s.recompute(ctx, userID)

	s.logger.Info("garment registered",
		slog.String("user_id", userID),
		slog.String("garment_id", garment.ID),
		slog.String("category", garment.Category),
		slog.String("style", garment.Style),
	)
	return s.withAbsoluteURL(garment), nil
}

func (s *Service) predict(ctx context.Context, imageURL string) (*inference.Prediction, error) {
	if s.predictor == nil {
		return nil, model.NewValidationError("カテゴリを指定してください")
	}
	predicted, err := s.predictor.Predict(ctx, imageURL)
	if err != nil {
		s.logger.Warn("garment prediction failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewPredictionFailedError(predictionReason(err))
	}
	return predicted, nil
}

func predictionReason(err error) string {
	switch {
	case errors.Is(err, inference.ErrUnavailable):
		return "解析サービスに接続できません"
	case errors.Is(err, inference.ErrRejected):
		return "画像を解析できませんでした"
	default:
		return "解析結果が不正です"
	}
}

// List はユーザーの衣服を登録順に返す。画像URLは絶対URLに変換する。
func (s *Service) List(ctx context.Context, userID string) ([]model.Garment, error) {
	garments, err := s.garments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("衣服一覧の取得に失敗しました: %w", err)
	}
	for i := range garments {
		garments[i].ImageURL = AbsoluteImageURL(s.baseURL, garments[i].ImageURL)
	}
	return garments, nil
}

// UpdateLabels は予測されたカテゴリ・スタイルをユーザーが修正する。
func (s *Service) UpdateLabels(ctx context.Context, userID, garmentID string, in LabelsInput) (*model.Garment, error) {
	if in.Category == nil && in.Style == nil {
		return nil, model.NewValidationError("categoryまたはstyleを指定してください")
	}

	current, err := s.garments.FindByID(ctx, userID, garmentID)
	if err != nil {
		return nil, fmt.Errorf("衣服の取得に失敗しました: %w", err)
	}
	if current == nil {
		return nil, model.NewGarmentNotFoundError(garmentID)
	}

	category, style := current.Category, current.Style
	if in.Category != nil {
		category = s.sanitizer.Sanitize(*in.Category)
		if category == "" {
			return nil, model.NewValidationError("categoryは空にできません")
		}
	}
	if in.Style != nil {
		style = s.sanitizer.Sanitize(*in.Style)
	}

	updated, err := s.garments.UpdateLabels(ctx, userID, garmentID, category, style)
	if err != nil {
		return nil, fmt.Errorf("衣服の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewGarmentNotFoundError(garmentID)
	}

	// カテゴリが変わると提示済みの候補が適格でなくなる可能性がある
	if category != current.Category {
		s.forget(ctx, userID, garmentID)
	}
	if style != current.Style {
		s.recompute(ctx, userID)
	}
	return s.withAbsoluteURL(updated), nil
}

// Delete は衣服を削除し、おすすめセッションからも取り除く。
func (s *Service) Delete(ctx context.Context, userID, garmentID string) error {
	deleted, err := s.garments.Delete(ctx, userID, garmentID)
	if err != nil {
		return fmt.Errorf("衣服の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewGarmentNotFoundError(garmentID)
	}

	s.forget(ctx, userID, garmentID)
	s.recompute(ctx, userID)

	s.logger.Info("garment deleted",
		slog.String("user_id", userID),
		slog.String("garment_id", garmentID),
	)
	return nil
}

// forget は衣服をおすすめセッションから取り除く。
// DBの変更は確定済みのため、リクエストがキャンセルされても最後まで実行する。
func (s *Service) forget(ctx context.Context, userID, garmentID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Forget(context.WithoutCancel(ctx), userID, garmentID); err != nil {
		s.logger.Warn("failed to remove garment from session",
			slog.String("user_id", userID),
			slog.String("garment_id", garmentID),
			slog.String("error", err.Error()),
		)
	}
}

// recompute はスタイル別集計を再計算する。
// 失敗しても衣服の変更は確定済みのため、ログに残して整合ワーカーに任せる。
func (s *Service) recompute(ctx context.Context, userID string) {
	if s.recomputer == nil {
		return
	}
	if err := s.recomputer.Recompute(ctx, userID); err != nil {
		s.logger.Warn("style preference recompute failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) withAbsoluteURL(g *model.Garment) *model.Garment {
	out := *g
	out.ImageURL = AbsoluteImageURL(s.baseURL, g.ImageURL)
	return &out
}

// AbsoluteImageURL は画像の参照を絶対URLに変換する。
// 既に絶対URLの場合はそのまま返す。
func AbsoluteImageURL(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(ref, "/")
}
