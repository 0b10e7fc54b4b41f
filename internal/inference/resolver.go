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
	"github.com/wearly/wearly/internal/model"
)

const resolverBreakerName = "category-resolver"

// ResolverConfig はカテゴリ判定クライアントの設定。
type ResolverConfig struct {
	Endpoint string
	Timeout  time.Duration
	Breaker  BreakerConfig
}

// CategoryResolver は(状況, 季節区分)に対して着用可能なカテゴリを返す外部サービスのクライアント。
//
// リクエスト: POST {"situation": "...", "season": "..."}
// レスポンス: {"categories": ["shirt", ...]} または ["shirt", ...]
type CategoryResolver struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[any]
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewCategoryResolver はCategoryResolverを生成する。
func NewCategoryResolver(httpClient *http.Client, cfg ResolverConfig, logger *slog.Logger, mc metrics.MetricsCollector) *CategoryResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &CategoryResolver{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		breaker:    newBreaker(resolverBreakerName, cfg.Breaker, logger, mc),
		logger:     logger,
		metrics:    mc,
	}
}

type resolveRequest struct {
	Situation string `json:"situation"`
	Season    string `json:"season"`
}

type resolveResponse struct {
	Categories []string `json:"categories"`
}

// Resolve は着用可能なカテゴリの一覧を返す。
// 失敗時はErrUnavailableまたはErrMalformedResponseをラップしたエラーを返す。
func (r *CategoryResolver) Resolve(ctx context.Context, situation string, season model.Season) ([]string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := r.breaker.Execute(func() (any, error) {
		body, err := postJSON(ctx, r.httpClient, resolverBreakerName, r.endpoint, resolveRequest{
			Situation: situation,
			Season:    string(season),
		})
		if err != nil {
			return nil, err
		}
		return decodeCategories(body)
	})
	r.metrics.RecordResolverLatency(time.Since(start))

	if err != nil {
		err = breakerError(resolverBreakerName, err)
		r.metrics.RecordResolverFailure()
		r.logger.Error("カテゴリ判定に失敗しました",
			slog.String("situation", situation),
			slog.String("season", string(season)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	categories, ok := result.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type %T", ErrMalformedResponse, result)
	}
	return categories, nil
}

// decodeCategories はオブジェクト形式と配列形式の両方のレスポンスを受け付ける。
// 空文字のカテゴリは除外し、前後の空白を取り除く。
func decodeCategories(body []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(body))

	var raw []string
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var resp resolveResponse
		if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if resp.Categories == nil {
			return nil, fmt.Errorf("%w: categories field is missing", ErrMalformedResponse)
		}
		raw = resp.Categories
	}

	categories := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	return categories, nil
}
