package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wearly/wearly/internal/metrics"
)

const predictorBreakerName = "garment-predictor"

// PredictorConfig は衣服画像予測クライアントの設定。
type PredictorConfig struct {
	Endpoint string
	Timeout  time.Duration
	Breaker  BreakerConfig
}

// Prediction は衣服画像から予測したスタイルとカテゴリ。
type Prediction struct {
	Style    string `json:"predicted_style"`
	Category string `json:"predicted_category"`
}

// Predictor は衣服画像のスタイルとカテゴリを予測する外部サービスのクライアント。
//
// リクエスト: POST {"image_url": "..."}
// レスポンス: {"predicted_style": "...", "predicted_category": "..."}
type Predictor struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[any]
	logger     *slog.Logger
}

// NewPredictor はPredictorを生成する。
func NewPredictor(httpClient *http.Client, cfg PredictorConfig, logger *slog.Logger, mc metrics.MetricsCollector) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Predictor{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		breaker:    newBreaker(predictorBreakerName, cfg.Breaker, logger, mc),
		logger:     logger,
	}
}

// Predict は画像URLからスタイルとカテゴリを予測する。
func (p *Predictor) Predict(ctx context.Context, imageURL string) (*Prediction, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.breaker.Execute(func() (any, error) {
		body, err := postJSON(ctx, p.httpClient, predictorBreakerName, p.endpoint, map[string]string{
			"image_url": imageURL,
		})
		if err != nil {
			return nil, err
		}

		var pred Prediction
		if err := json.Unmarshal(body, &pred); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		pred.Style = strings.TrimSpace(pred.Style)
		pred.Category = strings.TrimSpace(pred.Category)
		if pred.Category == "" {
			return nil, fmt.Errorf("%w: predicted_category is empty", ErrMalformedResponse)
		}
		return &pred, nil
	})
	if err != nil {
		err = breakerError(predictorBreakerName, err)
		p.logger.Error("衣服画像の予測に失敗しました",
			slog.String("image_url", imageURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	pred, ok := result.(*Prediction)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type %T", ErrMalformedResponse, result)
	}
	return pred, nil
}
