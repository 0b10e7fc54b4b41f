package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/wearly/wearly/internal/model"
)

// StylePreferenceLister はスタイル別集計嗜好スコアを参照するインターフェース。
type StylePreferenceLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.StylePreference, error)
}

// PreferenceHandler は嗜好スコア参照のHTTPハンドラー。
type PreferenceHandler struct {
	prefs StylePreferenceLister
}

// NewPreferenceHandler はPreferenceHandlerを生成する。
func NewPreferenceHandler(prefs StylePreferenceLister) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

// stylePreferenceResponse はスタイル別スコアのAPIレスポンス。
type stylePreferenceResponse struct {
	Style     string    `json:"style"`
	Score     float64   `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListStyles はユーザーのスタイル別集計嗜好スコアをスタイル名順で返す。
// GET /api/preferences/styles
func (h *PreferenceHandler) ListStyles(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	prefs, err := h.prefs.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]stylePreferenceResponse, 0, len(prefs))
	for _, p := range prefs {
		resp = append(resp, stylePreferenceResponse{
			Style:     p.Style,
			Score:     p.Score,
			UpdatedAt: p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
