package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wearly/wearly/internal/closet"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/recommend"
	"github.com/wearly/wearly/internal/validation"
)

// RecommendationServiceInterface はおすすめハンドラーが必要とするサービスインターフェース。
type RecommendationServiceInterface interface {
	Recommend(ctx context.Context, userID, situation string, reading *model.WeatherReading) (*recommend.Result, error)
	RecommendAt(ctx context.Context, userID, situation string, lat, lon float64) (*recommend.Result, error)
	SubmitFeedback(ctx context.Context, userID, garmentID string, sign model.FeedbackSign) (*recommend.FeedbackResult, error)
	Current(ctx context.Context, userID string) (*model.Garment, error)
}

// RecommendationHandler はおすすめとフィードバックのHTTPハンドラー。
type RecommendationHandler struct {
	service RecommendationServiceInterface
	baseURL string
}

// NewRecommendationHandler はRecommendationHandlerを生成する。
// 画像の相対参照はbaseURLを基準に絶対URLへ変換する。
func NewRecommendationHandler(service RecommendationServiceInterface, baseURL string) *RecommendationHandler {
	return &RecommendationHandler{
		service: service,
		baseURL: baseURL,
	}
}

// feedbackRequest はフィードバック送信リクエストのボディ。
type feedbackRequest struct {
	GarmentID string `json:"garment_id" validate:"notblank"`
	Feedback  string `json:"feedback" validate:"required,oneof=like dislike"`
}

// recommendationResponse はおすすめ結果のAPIレスポンス。
type recommendationResponse struct {
	Outcome   string            `json:"outcome"`
	Season    string            `json:"season"`
	Garment   *garmentResponse  `json:"garment"`
	Remaining []garmentResponse `json:"remaining"`
}

// feedbackResponse はフィードバック結果のAPIレスポンス。
type feedbackResponse struct {
	Outcome string           `json:"outcome"`
	Garment *garmentResponse `json:"garment"`
	Updated *garmentResponse `json:"updated"`
}

// currentResponse は提示中の衣服のAPIレスポンス。
type currentResponse struct {
	Garment *garmentResponse `json:"garment"`
}

func (h *RecommendationHandler) garment(g *model.Garment) *garmentResponse {
	if g == nil {
		return nil
	}
	resp := toGarmentResponse(g)
	resp.ImageURL = closet.AbsoluteImageURL(h.baseURL, g.ImageURL)
	return &resp
}

// GetRecommendation はシチュエーションと気象条件からおすすめを開始する。
// GET /api/recommendations?situation=...&lat=...&lon=...
// GET /api/recommendations?situation=...&temp=...&temp_min=...&temp_max=...
func (h *RecommendationHandler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	situation := q.Get("situation")

	var (
		result *recommend.Result
		err    error
	)
	switch {
	case q.Has("temp") || q.Has("temp_min") || q.Has("temp_max"):
		var reading *model.WeatherReading
		reading, err = parseReading(q)
		if err == nil {
			result, err = h.service.Recommend(r.Context(), userID, situation, reading)
		}
	case q.Has("lat") || q.Has("lon"):
		var lat, lon float64
		lat, lon, err = parseLocation(q)
		if err == nil {
			result, err = h.service.RecommendAt(r.Context(), userID, situation, lat, lon)
		}
	default:
		err = model.NewValidationError("latとlon、またはtemp・temp_min・temp_maxを指定してください")
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result.Outcome == recommend.OutcomeResolutionFailed {
		handleServiceError(w, model.NewResolutionFailedError(result.Reason))
		return
	}

	resp := recommendationResponse{
		Outcome:   string(result.Outcome),
		Season:    string(result.Season),
		Garment:   h.garment(result.Head),
		Remaining: make([]garmentResponse, 0, len(result.Remaining)),
	}
	for i := range result.Remaining {
		resp.Remaining = append(resp.Remaining, *h.garment(&result.Remaining[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitFeedback は提示中の衣服へのフィードバックを反映する。
// POST /api/recommendations/feedback
func (h *RecommendationHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		handleServiceError(w, err)
		return
	}
	sign, _ := model.ParseFeedbackSign(req.Feedback)

	result, err := h.service.SubmitFeedback(r.Context(), userID, req.GarmentID, sign)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{
		Outcome: string(result.Outcome),
		Garment: h.garment(result.Head),
		Updated: h.garment(result.Updated),
	})
}

// GetCurrent は提示中の衣服を返す。セッションがない場合はgarmentがnullになる。
// GET /api/recommendations/current
func (h *RecommendationHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	head, err := h.service.Current(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, currentResponse{Garment: h.garment(head)})
}

func parseReading(q url.Values) (*model.WeatherReading, error) {
	temp, err := parseFloatParam(q, "temp")
	if err != nil {
		return nil, err
	}
	tempMin, err := parseFloatParam(q, "temp_min")
	if err != nil {
		return nil, err
	}
	tempMax, err := parseFloatParam(q, "temp_max")
	if err != nil {
		return nil, err
	}
	return &model.WeatherReading{Temp: temp, TempMin: tempMin, TempMax: tempMax}, nil
}

func parseLocation(q url.Values) (float64, float64, error) {
	lat, err := parseFloatParam(q, "lat")
	if err != nil {
		return 0, 0, err
	}
	lon, err := parseFloatParam(q, "lon")
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func parseFloatParam(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, model.NewValidationError(name + "は必須です")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.NewValidationError(name + "は数値で指定してください")
	}
	return v, nil
}
