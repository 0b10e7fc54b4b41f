// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/wearly/wearly/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合は一意制約違反のエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePreferredStyle は好みのスタイルを更新する。
	// ユーザーが存在しない場合はfalseを返す。
	UpdatePreferredStyle(ctx context.Context, id, style string) (bool, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するgarments、style_preferencesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListIDs は全ユーザーのIDを作成順に返す。
	ListIDs(ctx context.Context) ([]string, error)
}

// GarmentRepository は衣服データの永続化インターフェース。
// スコアとフィードバック数の変更はFeedbackTx経由でのみ行う。
type GarmentRepository interface {
	// FindByID はユーザーの衣服を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, garmentID string) (*model.Garment, error)

	// ListByUser はユーザーの全衣服を登録順（seq昇順）で返す。
	ListByUser(ctx context.Context, userID string) ([]model.Garment, error)

	// Create は衣服を作成する。SeqとタイムスタンプはDBが採番した値で上書きされる。
	Create(ctx context.Context, garment *model.Garment) error

	// UpdateLabels はカテゴリとスタイルを更新する。見つからない場合はnilを返す。
	UpdateLabels(ctx context.Context, userID, garmentID, category, style string) (*model.Garment, error)

	// Delete は衣服を削除する。見つからない場合はfalseを返す。
	Delete(ctx context.Context, userID, garmentID string) (bool, error)
}

// StylePreferenceRepository はスタイル別集計嗜好スコアの参照インターフェース。
type StylePreferenceRepository interface {
	// ListByUser はユーザーのスタイル別スコアをスタイル名順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.StylePreference, error)
}

// FeedbackStore はフィードバック反映とスタイル集計の再計算を
// 単一トランザクションで実行するためのインターフェース。
type FeedbackStore interface {
	// WithinTx はトランザクション内でfnを実行する。
	// fnがエラーを返した場合はロールバックし、そのエラーを返す。
	WithinTx(ctx context.Context, fn func(tx FeedbackTx) error) error
}

// FeedbackTx はトランザクション内で利用できる操作。
type FeedbackTx interface {
	// LockUser はユーザー行を排他ロックし、同一ユーザーの集計再計算を直列化する。
	// ユーザーが存在しない場合はfalseを返す。
	LockUser(ctx context.Context, userID string) (bool, error)

	// ApplyScoreDelta は衣服のスコアにdeltaを加算し、フィードバック数を1増やす。
	// 見つからない場合はnilを返す。
	ApplyScoreDelta(ctx context.Context, userID, garmentID string, delta float64) (*model.Garment, error)

	// ListByUser はユーザーの全衣服を登録順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.Garment, error)

	// UpsertStylePreference はスタイル別スコアを挿入または上書きする。
	UpsertStylePreference(ctx context.Context, userID, style string, score float64) error

	// DeleteStylePreferencesExcept はkeepに含まれないスタイルの集計行を削除する。
	DeleteStylePreferencesExcept(ctx context.Context, userID string, keep []string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
