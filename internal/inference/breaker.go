// Package inference はカテゴリ判定サービスと衣服画像予測サービスのHTTPクライアントを提供する。
// どちらもタイムアウトとサーキットブレーカーで保護される。
package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wearly/wearly/internal/metrics"
)

var (
	// ErrUnavailable はサービスに到達できない、タイムアウトした、
	// またはサーキットが開いている場合のエラー。
	ErrUnavailable = errors.New("inference service unavailable")
	// ErrMalformedResponse はレスポンスが期待した形式でない場合のエラー。
	ErrMalformedResponse = errors.New("malformed inference response")
	// ErrRejected はサービスがリクエストを拒否した場合（4xx）のエラー。
	ErrRejected = errors.New("inference request rejected")
)

// statusClass はHTTPステータスコードの分類。
type statusClass int

const (
	statusOK statusClass = iota
	// statusRejected はリクエスト側の問題（400/404/422など）。サーキットの失敗には数えない。
	statusRejected
	// statusUnavailable はサービス側の問題（429/5xx）。
	statusUnavailable
)

// classifyStatus はHTTPステータスコードを分類する。
func classifyStatus(statusCode int) statusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return statusOK
	case statusCode == http.StatusTooManyRequests:
		return statusUnavailable
	case statusCode >= 500:
		return statusUnavailable
	default:
		return statusRejected
	}
}

// statusError はステータスコードの分類に応じたエラーを返す。
func statusError(service string, statusCode int) error {
	switch classifyStatus(statusCode) {
	case statusOK:
		return nil
	case statusRejected:
		return fmt.Errorf("%w: %s returned status %d", ErrRejected, service, statusCode)
	default:
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, service, statusCode)
	}
}

// BreakerConfig はサーキットブレーカーの設定。
type BreakerConfig struct {
	// MaxRequests はhalf-open状態で許可する同時リクエスト数。
	MaxRequests uint32
	// Interval はclosed状態でカウントをリセットする間隔。
	Interval time.Duration
	// Timeout はopen状態からhalf-open状態に移るまでの時間。
	Timeout time.Duration
	// ConsecutiveFailures はサーキットを開く連続失敗回数。
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig は既定のブレーカー設定を返す。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// newBreaker はログとメトリクスに状態遷移を記録するサーキットブレーカーを生成する。
// ErrRejectedは呼び出し側の入力の問題のため失敗として数えない。
func newBreaker(name string, cfg BreakerConfig, logger *slog.Logger, mc metrics.MetricsCollector) *gobreaker.CircuitBreaker[any] {
	mc.RecordBreakerState(name, gobreaker.StateClosed.String())

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			mc.RecordBreakerState(name, to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
	})
}

// breakerError はブレーカーが拒否した場合のエラーをErrUnavailableに変換する。
func breakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s circuit breaker: %v", ErrUnavailable, name, err)
	}
	return err
}
