// Package preference はフィードバックによる嗜好スコアの更新と
// スタイル別集計スコアの再計算を提供する。
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/repository"
)

const (
	// defaultMaxAttempts はシリアライゼーション失敗・デッドロック時の最大試行回数。
	defaultMaxAttempts = 3
	// retryBaseDelay は再試行前の待機時間の基準値。試行ごとに倍にする。
	retryBaseDelay = 20 * time.Millisecond
)

// errGarmentNotFound はトランザクションをロールバックさせるための内部エラー。
var errGarmentNotFound = errors.New("garment not found")

// Updater はフィードバックを衣服スコアに反映し、スタイル別集計を再計算する。
// 両方の変更は単一トランザクションで行われ、途中で失敗した場合はどちらも反映されない。
type Updater struct {
	store       repository.FeedbackStore
	logger      *slog.Logger
	maxAttempts int
}

// NewUpdater はUpdaterを生成する。
func NewUpdater(store repository.FeedbackStore, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		store:       store,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
	}
}

// Apply はフィードバックを反映する。
// スコアにsignを加算してフィードバック数を1増やし、ユーザーの全スタイルの平均スコアを再計算する。
// 衣服が見つからない場合はGARMENT_NOT_FOUND、保存に失敗した場合はPERSISTENCE_FAILEDを返す。
func (u *Updater) Apply(ctx context.Context, userID, garmentID string, sign model.FeedbackSign) (*model.Garment, error) {
	if !sign.Valid() {
		return nil, model.NewValidationError("feedbackはlikeまたはdislikeを指定してください")
	}

	var updated *model.Garment
	err := u.withRetry(ctx, func(tx repository.FeedbackTx) error {
		ok, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return errGarmentNotFound
		}

		g, err := tx.ApplyScoreDelta(ctx, userID, garmentID, float64(sign))
		if err != nil {
			return err
		}
		if g == nil {
			return errGarmentNotFound
		}

		if err := recompute(ctx, tx, userID); err != nil {
			return err
		}
		updated = g
		return nil
	})
	if errors.Is(err, errGarmentNotFound) {
		return nil, model.NewGarmentNotFoundError(garmentID)
	}
	if err != nil {
		u.logger.Error("failed to apply feedback",
			slog.String("user_id", userID),
			slog.String("garment_id", garmentID),
			slog.String("sign", sign.String()),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceFailedError()
	}

	u.logger.Info("feedback applied",
		slog.String("user_id", userID),
		slog.String("garment_id", garmentID),
		slog.String("sign", sign.String()),
		slog.Float64("preference_score", updated.PreferenceScore),
		slog.Int("feedback_count", updated.FeedbackCount),
	)
	return updated, nil
}

// Recompute はユーザーのスタイル別集計スコアを衣服スコアから全件再計算する。
// 再計算は冪等であり、衣服の登録・変更・削除の後や定期的な補正で使用する。
// ユーザーが存在しない場合は何もしない。
func (u *Updater) Recompute(ctx context.Context, userID string) error {
	err := u.withRetry(ctx, func(tx repository.FeedbackTx) error {
		ok, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return recompute(ctx, tx, userID)
	})
	if err != nil {
		return fmt.Errorf("スタイル別スコアの再計算に失敗しました: %w", err)
	}
	return nil
}

func recompute(ctx context.Context, tx repository.FeedbackTx, userID string) error {
	garments, err := tx.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	means := StyleMeans(garments)
	keep := make([]string, 0, len(means))
	for _, m := range means {
		if err := tx.UpsertStylePreference(ctx, userID, m.Style, m.Score); err != nil {
			return err
		}
		keep = append(keep, m.Style)
	}
	return tx.DeleteStylePreferencesExcept(ctx, userID, keep)
}

// withRetry はfnをトランザクション内で実行し、再試行可能なエラーの場合は最大maxAttempts回まで繰り返す。
func (u *Updater) withRetry(ctx context.Context, fn func(tx repository.FeedbackTx) error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		err = u.store.WithinTx(ctx, fn)
		if err == nil || !repository.IsRetryable(err) {
			return err
		}

		u.logger.Warn("retrying feedback transaction",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt == u.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// StyleMeans はスタイルごとのPreferenceScoreの算術平均をスタイル名順で返す。
// スタイルが空の衣服は集計対象外とする。
func StyleMeans(garments []model.Garment) []model.StylePreference {
	type acc struct {
		sum   float64
		count int
	}
	byStyle := make(map[string]*acc)
	for _, g := range garments {
		if g.Style == "" {
			continue
		}
		a, ok := byStyle[g.Style]
		if !ok {
			a = &acc{}
			byStyle[g.Style] = a
		}
		a.sum += g.PreferenceScore
		a.count++
	}

	prefs := make([]model.StylePreference, 0, len(byStyle))
	for style, a := range byStyle {
		prefs = append(prefs, model.StylePreference{
			Style: style,
			Score: a.sum / float64(a.count),
		})
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].Style < prefs[j].Style })
	return prefs
}
