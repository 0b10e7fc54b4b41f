// Package model はドメインモデルを定義する。
package model

import "time"

// Garment はユーザーが所有する衣服1点を表す。
// PreferenceScoreとFeedbackCountはフィードバックによってのみ変更される。
type Garment struct {
	ID              string
	UserID          string
	ImageURL        string // 画像の参照（相対パスまたは絶対URL）
	Category        string // 予測カテゴリ（例: "shirt", "jacket"）
	Style           string // 予測スタイル（例: "casual", "street"）
	PreferenceScore float64
	FeedbackCount   int
	Seq             int64 // 登録順。ランキングの同点時の並び順に使用する
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StylePreference はユーザーごと・スタイルごとの集計嗜好スコアを表す。
// 同じスタイルを持つ衣服のPreferenceScoreの算術平均。
type StylePreference struct {
	UserID    string
	Style     string
	Score     float64
	UpdatedAt time.Time
}

// FeedbackSign はフィードバックの符号（いいね: +1、よくない: -1）。
type FeedbackSign int

const (
	// FeedbackLike は「いいね」を表す。
	FeedbackLike FeedbackSign = 1
	// FeedbackDislike は「よくない」を表す。
	FeedbackDislike FeedbackSign = -1
)

// Valid は符号が+1または-1であるかを返す。
func (s FeedbackSign) Valid() bool {
	return s == FeedbackLike || s == FeedbackDislike
}

// String はAPIで使用する文字列表現を返す。
func (s FeedbackSign) String() string {
	switch s {
	case FeedbackLike:
		return "like"
	case FeedbackDislike:
		return "dislike"
	default:
		return "unknown"
	}
}

// ParseFeedbackSign は "like" / "dislike" をFeedbackSignに変換する。
func ParseFeedbackSign(s string) (FeedbackSign, bool) {
	switch s {
	case "like":
		return FeedbackLike, true
	case "dislike":
		return FeedbackDislike, true
	default:
		return 0, false
	}
}
