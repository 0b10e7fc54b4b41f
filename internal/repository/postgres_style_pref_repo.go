package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wearly/wearly/internal/model"
)

// PostgresStylePreferenceRepo はPostgreSQLを使用したスタイル別スコアの参照リポジトリ。
type PostgresStylePreferenceRepo struct {
	db *sql.DB
}

// NewPostgresStylePreferenceRepo はPostgresStylePreferenceRepoを生成する。
func NewPostgresStylePreferenceRepo(db *sql.DB) *PostgresStylePreferenceRepo {
	return &PostgresStylePreferenceRepo{db: db}
}

// ListByUser はユーザーのスタイル別スコアをスタイル名順で返す。
func (r *PostgresStylePreferenceRepo) ListByUser(ctx context.Context, userID string) ([]model.StylePreference, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, style, score, updated_at
		 FROM style_preferences WHERE user_id = $1 ORDER BY style`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("スタイル別スコアの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	prefs := []model.StylePreference{}
	for rows.Next() {
		var p model.StylePreference
		if err := rows.Scan(&p.UserID, &p.Style, &p.Score, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("スタイル別スコアのスキャンに失敗しました: %w", err)
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スタイル別スコアの走査に失敗しました: %w", err)
	}
	return prefs, nil
}

// compile-time interface check
var _ StylePreferenceRepository = (*PostgresStylePreferenceRepo)(nil)
