// Package weather は現在地の気温を取得する天気APIクライアントを提供する。
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wearly/wearly/internal/model"
)

const (
	// DefaultEndpoint はOpenWeatherMapの現在の天気APIのエンドポイント。
	DefaultEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 256 << 10
)

// ErrUnavailable は天気情報を取得できない場合のエラー。
var ErrUnavailable = errors.New("weather unavailable")

// Config は天気APIクライアントの設定。
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client はOpenWeatherMap互換の天気APIクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string
	timeout    time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
// 外部APIへのアクセスにはSSRF対策済みのhttpClientを渡すこと。
func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		timeout:    cfg.Timeout,
	}
}

type currentResponse struct {
	Main *struct {
		Temp    *float64 `json:"temp"`
		TempMin *float64 `json:"temp_min"`
		TempMax *float64 `json:"temp_max"`
	} `json:"main"`
}

// Current は指定座標の現在気温と当日の最低・最高気温（摂氏）を返す。
// 取得に失敗した場合はErrUnavailableをラップしたエラーを返す。
func (c *Client) Current(ctx context.Context, lat, lon float64) (*model.WeatherReading, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("units", "metric")
	if c.apiKey != "" {
		q.Set("appid", c.apiKey)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Wearly/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("天気APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("天気APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: レスポンスボディの読み取りに失敗しました: %v", ErrUnavailable, err)
	}

	var result currentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("天気APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: レスポンスJSONのパースに失敗しました: %v", ErrUnavailable, err)
	}
	if result.Main == nil || result.Main.Temp == nil || result.Main.TempMin == nil || result.Main.TempMax == nil {
		return nil, fmt.Errorf("%w: 気温がレスポンスに含まれていません", ErrUnavailable)
	}

	reading := &model.WeatherReading{
		Temp:    *result.Main.Temp,
		TempMin: *result.Main.TempMin,
		TempMax: *result.Main.TempMax,
	}
	for _, v := range []float64{reading.Temp, reading.TempMin, reading.TempMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: 気温が有限値ではありません", ErrUnavailable)
		}
	}
	return reading, nil
}
