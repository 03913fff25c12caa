package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quickbite/internal/domain"
)

type PointsRepo struct{ db sqlx.ExtContext }

func NewPointsRepo(db sqlx.ExtContext) *PointsRepo { return &PointsRepo{db: db} }

func (r *PointsRepo) Add(ctx context.Context, e *domain.PointsEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now()
	}
	_, err := sqlx.NamedExecContext(ctx, r.db, `
		INSERT INTO points_ledger(id, user_id, delta, reason, order_id, created_at)
		VALUES(:id, :user_id, :delta, :reason, :order_id, :created_at)
	`, e)
	return err
}

func (r *PointsRepo) Balance(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COALESCE(SUM(delta), 0) FROM points_ledger WHERE user_id = ?`, userID)
	return n, err
}

func (r *PointsRepo) Ledger(ctx context.Context, userID string, limit int) ([]domain.PointsEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []domain.PointsEntry
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT id, user_id, delta, reason, order_id, created_at
		FROM points_ledger
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	return out, err
}
