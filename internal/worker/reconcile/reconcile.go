// Package reconcile はスタイル別集計嗜好スコアの整合ジョブを提供する。
// 全ユーザーについて衣服スコアから集計を再計算し、
// 衣服の登録・削除時に集計の更新が失敗した場合の不整合を解消する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wearly/wearly/internal/metrics"
)

// UserLister は整合対象のユーザーIDを列挙する。
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Recomputer は1ユーザー分のスタイル別集計を再計算する。
type Recomputer interface {
	Recompute(ctx context.Context, userID string) error
}

// Summary は1サイクル分の実行結果。
type Summary struct {
	Users     int
	Succeeded int
	Failed    int
}

// Worker は定期的に全ユーザーのスタイル別集計を再計算する。
// errgroupで最大並列数を制御し、ユーザーごとの失敗は他のユーザーの処理を止めない。
type Worker struct {
	users          UserLister
	recomputer     Recomputer
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
	maxConcurrency int

	// MaxAttempts はユーザーごとの再計算の最大試行回数（デフォルト: 3）
	MaxAttempts int
	// RetryBackoff は再試行までの待機時間。試行ごとに倍増する（デフォルト: 200ms）
	RetryBackoff time.Duration
}

// NewWorker はWorkerを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewWorker(users UserLister, recomputer Recomputer, logger *slog.Logger, mc metrics.MetricsCollector, maxConcurrency int) *Worker {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Worker{
		users:          users,
		recomputer:     recomputer,
		logger:         logger,
		metrics:        mc,
		maxConcurrency: maxConcurrency,
		MaxAttempts:    3,
		RetryBackoff:   200 * time.Millisecond,
	}
}

// Start は指定間隔のティッカーで整合ジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("嗜好スコア整合ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", w.maxConcurrency),
	)

	// 起動直後に1回実行
	w.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("嗜好スコア整合ワーカーを停止しました")
			return
		case <-ticker.C:
			w.runAndLog(ctx)
		}
	}
}

func (w *Worker) runAndLog(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("整合サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全ユーザーの集計を1回再計算する。
// ユーザー一覧の取得に失敗した場合のみエラーを返す。
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()

	userIDs, err := w.users.ListIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	if len(userIDs) == 0 {
		w.logger.Info("整合対象のユーザーはいません")
		return Summary{}, nil
	}

	var succeeded, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(w.maxConcurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			if err := w.recomputeWithRetry(ctx, userID); err != nil {
				failed.Add(1)
				w.metrics.RecordReconcile("failed")
				w.logger.Error("嗜好スコアの再計算に失敗しました",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			succeeded.Add(1)
			w.metrics.RecordReconcile("ok")
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Users:     len(userIDs),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
	w.logger.Info("整合サイクルが完了しました",
		slog.Int("user_count", summary.Users),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return summary, nil
}

// recomputeWithRetry は失敗時にバックオフしながら再計算を再試行する。
func (w *Worker) recomputeWithRetry(ctx context.Context, userID string) error {
	attempts := w.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := w.RetryBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = w.recomputer.Recompute(ctx, userID); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%d回の試行で再計算に失敗: %w", attempts, err)
}
