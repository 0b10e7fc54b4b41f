package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wearly/wearly/internal/model"
)

// PostgresGarmentRepo はPostgreSQLを使用した衣服リポジトリ。
type PostgresGarmentRepo struct {
	db *sql.DB
}

// NewPostgresGarmentRepo はPostgresGarmentRepoを生成する。
func NewPostgresGarmentRepo(db *sql.DB) *PostgresGarmentRepo {
	return &PostgresGarmentRepo{db: db}
}

const garmentColumns = `id, user_id, image_url, category, style, preference_score, feedback_count, seq, created_at, updated_at`

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanGarment(row interface{ Scan(dest ...any) error }) (*model.Garment, error) {
	g := &model.Garment{}
	err := row.Scan(
		&g.ID, &g.UserID, &g.ImageURL, &g.Category, &g.Style,
		&g.PreferenceScore, &g.FeedbackCount, &g.Seq, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// listGarmentsByUser はユーザーの全衣服を登録順で取得する。
// PostgresGarmentRepoとトランザクション内の両方から使用する。
func listGarmentsByUser(ctx context.Context, q queryer, userID string) ([]model.Garment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+garmentColumns+` FROM garments WHERE user_id = $1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("衣服一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	garments := []model.Garment{}
	for rows.Next() {
		g, err := scanGarment(rows)
		if err != nil {
			return nil, fmt.Errorf("衣服のスキャンに失敗しました: %w", err)
		}
		garments = append(garments, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("衣服一覧の走査に失敗しました: %w", err)
	}
	return garments, nil
}

// FindByID はユーザーの衣服を取得する。見つからない場合はnilを返す。
func (r *PostgresGarmentRepo) FindByID(ctx context.Context, userID, garmentID string) (*model.Garment, error) {
	g, err := scanGarment(r.db.QueryRowContext(ctx,
		`SELECT `+garmentColumns+` FROM garments WHERE user_id = $1 AND id = $2`,
		userID, garmentID,
	))
	if err == sql.ErrNoRows || IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("衣服の取得に失敗しました: %w", err)
	}
	return g, nil
}

// ListByUser はユーザーの全衣服を登録順（seq昇順）で返す。
func (r *PostgresGarmentRepo) ListByUser(ctx context.Context, userID string) ([]model.Garment, error) {
	return listGarmentsByUser(ctx, r.db, userID)
}

// Create は衣服を作成する。SeqとタイムスタンプはDBが採番した値で上書きされる。
func (r *PostgresGarmentRepo) Create(ctx context.Context, g *model.Garment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO garments (id, user_id, image_url, category, style)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING preference_score, feedback_count, seq, created_at, updated_at`,
		g.ID, g.UserID, g.ImageURL, g.Category, g.Style,
	).Scan(&g.PreferenceScore, &g.FeedbackCount, &g.Seq, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("衣服の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateLabels はカテゴリとスタイルを更新する。見つからない場合はnilを返す。
func (r *PostgresGarmentRepo) UpdateLabels(ctx context.Context, userID, garmentID, category, style string) (*model.Garment, error) {
	g, err := scanGarment(r.db.QueryRowContext(ctx,
		`UPDATE garments SET category = $3, style = $4, updated_at = now()
		 WHERE user_id = $1 AND id = $2
		 RETURNING `+garmentColumns,
		userID, garmentID, category, style,
	))
	if err == sql.ErrNoRows || IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("衣服の更新に失敗しました: %w", err)
	}
	return g, nil
}

// Delete は衣服を削除する。見つからない場合はfalseを返す。
func (r *PostgresGarmentRepo) Delete(ctx context.Context, userID, garmentID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM garments WHERE user_id = $1 AND id = $2`,
		userID, garmentID,
	)
	if IsInvalidInput(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("衣服の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ GarmentRepository = (*PostgresGarmentRepo)(nil)
