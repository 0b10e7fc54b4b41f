// Package realtime はコンパニオン端末（タブレット等）へのWebSocket配信を提供する。
// 提示中のおすすめが変わるたびに、同じユーザーの全端末へ通知する。
package realtime

import (
	"github.com/wearly/wearly/internal/closet"
	"github.com/wearly/wearly/internal/model"
)

// メッセージ種別
const (
	MessageTypeRecommendation = "recommendation"
	MessageTypeSessionEmpty   = "session_empty"
	MessageTypeSync           = "sync"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeError          = "error"
)

// Message は端末とやり取りするメッセージ。
type Message struct {
	Type    string          `json:"type"`
	Garment *GarmentPayload `json:"garment,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// GarmentPayload は端末に表示する衣服の情報。
type GarmentPayload struct {
	ID              string  `json:"id"`
	ImageURL        string  `json:"image_url"`
	Category        string  `json:"category"`
	Style           string  `json:"style"`
	PreferenceScore float64 `json:"preference_score"`
}

// Envelope は宛先ユーザー付きのメッセージ。インスタンス間の配信に使う。
type Envelope struct {
	UserID  string  `json:"user_id"`
	Message Message `json:"message"`
}

// headMessage は提示中の衣服からメッセージを作る。headがnilの場合はsession_empty。
func headMessage(baseURL string, head *model.Garment) Message {
	if head == nil {
		return Message{Type: MessageTypeSessionEmpty}
	}
	return Message{
		Type: MessageTypeRecommendation,
		Garment: &GarmentPayload{
			ID:              head.ID,
			ImageURL:        closet.AbsoluteImageURL(baseURL, head.ImageURL),
			Category:        head.Category,
			Style:           head.Style,
			PreferenceScore: head.PreferenceScore,
		},
	}
}
