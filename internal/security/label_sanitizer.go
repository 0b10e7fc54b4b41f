package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxLabelLength はラベルの最大文字数。超えた分は切り捨てる。
const MaxLabelLength = 64

// LabelSanitizer はユーザーや予測器から受け取ったラベル
// （カテゴリ、スタイル、状況、名前）からマークアップを取り除く。
type LabelSanitizer interface {
	// Sanitize はタグを除去し、空白を正規化したプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(label string) string
}

type labelSanitizer struct {
	policy *bluemonday.Policy
}

// NewLabelSanitizer はbluemondayのStrictPolicyを使うLabelSanitizerを生成する。
func NewLabelSanitizer() LabelSanitizer {
	return &labelSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *labelSanitizer) Sanitize(label string) string {
	// StrictPolicyはテキストをHTMLエスケープして返すため元に戻す
	text := html.UnescapeString(s.policy.Sanitize(label))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) > MaxLabelLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:MaxLabelLength]))
	}
	return text
}
