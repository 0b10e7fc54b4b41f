package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/wearly/wearly/internal/model"
)

// PostgresFeedbackStore はフィードバック反映用のトランザクションを提供する。
type PostgresFeedbackStore struct {
	db TxBeginner
}

// NewPostgresFeedbackStore はPostgresFeedbackStoreを生成する。
func NewPostgresFeedbackStore(db TxBeginner) *PostgresFeedbackStore {
	return &PostgresFeedbackStore{db: db}
}

// WithinTx はトランザクション内でfnを実行する。
// fnがエラーを返した場合やコミットに失敗した場合はロールバックされる。
func (s *PostgresFeedbackStore) WithinTx(ctx context.Context, fn func(tx FeedbackTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresFeedbackTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresFeedbackTx struct {
	tx *sql.Tx
}

func (t *postgresFeedbackTx) LockUser(ctx context.Context, userID string) (bool, error) {
	var id string
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&id)
	if err == sql.ErrNoRows || IsInvalidInput(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock user: %w", err)
	}
	return true, nil
}

func (t *postgresFeedbackTx) ApplyScoreDelta(ctx context.Context, userID, garmentID string, delta float64) (*model.Garment, error) {
	g, err := scanGarment(t.tx.QueryRowContext(ctx,
		`UPDATE garments
		 SET preference_score = preference_score + $3,
		     feedback_count = feedback_count + 1,
		     updated_at = now()
		 WHERE user_id = $1 AND id = $2
		 RETURNING `+garmentColumns,
		userID, garmentID, delta,
	))
	if err == sql.ErrNoRows || IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply score delta: %w", err)
	}
	return g, nil
}

func (t *postgresFeedbackTx) ListByUser(ctx context.Context, userID string) ([]model.Garment, error) {
	return listGarmentsByUser(ctx, t.tx, userID)
}

func (t *postgresFeedbackTx) UpsertStylePreference(ctx context.Context, userID, style string, score float64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO style_preferences (user_id, style, score, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, style)
		 DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`,
		userID, style, score,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert style preference: %w", err)
	}
	return nil
}

func (t *postgresFeedbackTx) DeleteStylePreferencesExcept(ctx context.Context, userID string, keep []string) error {
	if keep == nil {
		keep = []string{}
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM style_preferences WHERE user_id = $1 AND NOT (style = ANY($2))`,
		userID, pq.Array(keep),
	)
	if err != nil {
		return fmt.Errorf("failed to delete stale style preferences: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FeedbackStore = (*PostgresFeedbackStore)(nil)
var _ FeedbackTx = (*postgresFeedbackTx)(nil)
