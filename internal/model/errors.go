// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, closet, recommend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeResolutionFailed   = "RESOLUTION_FAILED"
	ErrCodeGarmentNotFound    = "GARMENT_NOT_FOUND"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodePredictionFailed   = "PREDICTION_FAILED"
)

// HasCode はerrのチェーン中に指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewResolutionFailedError はカテゴリ判定や天気取得などの外部依存の失敗を表すエラーを生成する。
func NewResolutionFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeResolutionFailed,
		Message:  fmt.Sprintf("おすすめの判定に必要な情報を取得できませんでした: %s", reason),
		Category: "recommend",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewGarmentNotFoundError は衣服未検出エラーを生成する。
func NewGarmentNotFoundError(garmentID string) *APIError {
	return &APIError{
		Code:     ErrCodeGarmentNotFound,
		Message:  fmt.Sprintf("指定された衣服が見つかりません: %s", garmentID),
		Category: "closet",
		Action:   "衣服IDを確認してください。",
	}
}

// NewPersistenceFailedError は永続化の失敗を表すエラーを生成する。
// 変更はすべてロールバックされている。
func NewPersistenceFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  "データの保存に失敗しました。変更は反映されていません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewEmailTakenError は登録済みメールアドレスでのサインアップ時のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されている画像のURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewPredictionFailedError は衣服画像のスタイル・カテゴリ予測失敗エラーを生成する。
func NewPredictionFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePredictionFailed,
		Message:  fmt.Sprintf("衣服の解析に失敗しました: %s", reason),
		Category: "closet",
		Action:   "カテゴリとスタイルを手動で指定するか、しばらく待ってから再度お試しください。",
	}
}
