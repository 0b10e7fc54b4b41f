package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wearly/wearly/internal/closet"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/validation"
)

// GarmentServiceInterface は衣服ハンドラーが必要とするサービスインターフェース。
type GarmentServiceInterface interface {
	// Create は衣服を登録する。カテゴリ・スタイル省略時は予測で補完する。
	Create(ctx context.Context, userID string, in closet.CreateInput) (*model.Garment, error)
	// List はユーザーの衣服を登録順に返す。
	List(ctx context.Context, userID string) ([]model.Garment, error)
	// UpdateLabels はカテゴリ・スタイルを修正する。
	UpdateLabels(ctx context.Context, userID, garmentID string, in closet.LabelsInput) (*model.Garment, error)
	// Delete は衣服を削除する。
	Delete(ctx context.Context, userID, garmentID string) error
}

// GarmentHandler はクローゼット管理のHTTPハンドラー。
type GarmentHandler struct {
	service GarmentServiceInterface
}

// NewGarmentHandler はGarmentHandlerを生成する。
func NewGarmentHandler(service GarmentServiceInterface) *GarmentHandler {
	return &GarmentHandler{service: service}
}

// createGarmentRequest は衣服登録リクエストのボディ。
type createGarmentRequest struct {
	ImageURL string `json:"image_url" validate:"required,max=2048"`
	Category string `json:"category" validate:"max=64"`
	Style    string `json:"style" validate:"max=64"`
}

// updateGarmentRequest はラベル修正リクエストのボディ。nilのフィールドは変更しない。
type updateGarmentRequest struct {
	Category *string `json:"category" validate:"omitempty,max=64"`
	Style    *string `json:"style" validate:"omitempty,max=64"`
}

// garmentResponse は衣服情報のAPIレスポンス。
type garmentResponse struct {
	ID              string    `json:"id"`
	ImageURL        string    `json:"image_url"`
	Category        string    `json:"category"`
	Style           string    `json:"style"`
	PreferenceScore float64   `json:"preference_score"`
	FeedbackCount   int       `json:"feedback_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func toGarmentResponse(g *model.Garment) garmentResponse {
	return garmentResponse{
		ID:              g.ID,
		ImageURL:        g.ImageURL,
		Category:        g.Category,
		Style:           g.Style,
		PreferenceScore: g.PreferenceScore,
		FeedbackCount:   g.FeedbackCount,
		CreatedAt:       g.CreatedAt,
	}
}

// CreateGarment は衣服を登録する。
// POST /api/garments
func (h *GarmentHandler) CreateGarment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createGarmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	garment, err := h.service.Create(r.Context(), userID, closet.CreateInput{
		ImageURL: req.ImageURL,
		Category: req.Category,
		Style:    req.Style,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGarmentResponse(garment))
}

// ListGarments はユーザーの衣服一覧を返す。
// GET /api/garments
func (h *GarmentHandler) ListGarments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	garments, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]garmentResponse, 0, len(garments))
	for i := range garments {
		resp = append(resp, toGarmentResponse(&garments[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateGarment は衣服のカテゴリ・スタイルを修正する。
// PATCH /api/garments/{id}
func (h *GarmentHandler) UpdateGarment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateGarmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	garment, err := h.service.UpdateLabels(r.Context(), userID, chi.URLParam(r, "id"), closet.LabelsInput{
		Category: req.Category,
		Style:    req.Style,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGarmentResponse(garment))
}

// DeleteGarment は衣服を削除する。
// DELETE /api/garments/{id}
func (h *GarmentHandler) DeleteGarment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
