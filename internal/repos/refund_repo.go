package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
)

type RefundRepo struct{ db sqlx.ExtContext }

func NewRefundRepo(db sqlx.ExtContext) *RefundRepo { return &RefundRepo{db: db} }

// RefundRow is a refund joined with the order's customer for the admin list.
type RefundRow struct {
	domain.Refund
	CustomerID   string `db:"customer_id" json:"customer_id"`
	CustomerName string `db:"customer_name" json:"customer_name"`
}

const refundCols = `f.id, f.order_id, f.amount, f.status, f.created_at, COALESCE(f.completed_at,'') AS completed_at`

func (r *RefundRepo) Create(ctx context.Context, f *domain.Refund) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt == "" {
		f.CreatedAt = now()
	}
	if f.Status == "" {
		f.Status = domain.RefundPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refunds(id, order_id, amount, status, created_at)
		VALUES(?, ?, ?, ?, ?)
	`, f.ID, f.OrderID, f.Amount, f.Status, f.CreatedAt)
	if isUnique(err) {
		return apperr.Conflictf("refund for order %s already exists", f.OrderID)
	}
	return err
}

func (r *RefundRepo) Get(ctx context.Context, id string) (*domain.Refund, error) {
	var f domain.Refund
	if err := sqlx.GetContext(ctx, r.db, &f, `SELECT `+refundCols+` FROM refunds f WHERE f.id = ?`, id); err != nil {
		return nil, notFound(err, "refund")
	}
	return &f, nil
}

func (r *RefundRepo) ByOrder(ctx context.Context, orderID string) (*domain.Refund, error) {
	var f domain.Refund
	if err := sqlx.GetContext(ctx, r.db, &f, `SELECT `+refundCols+` FROM refunds f WHERE f.order_id = ?`, orderID); err != nil {
		return nil, notFound(err, "refund")
	}
	return &f, nil
}

func (r *RefundRepo) List(ctx context.Context, pendingOnly bool) ([]RefundRow, error) {
	q := `
		SELECT ` + refundCols + `, o.customer_id, u.name AS customer_name
		FROM refunds f
		JOIN orders o ON o.id = f.order_id
		JOIN users u ON u.id = o.customer_id`
	if pendingOnly {
		q += ` WHERE f.status = 'pending'`
	}
	q += ` ORDER BY f.created_at DESC, f.id`
	var out []RefundRow
	err := sqlx.SelectContext(ctx, r.db, &out, q)
	return out, err
}

// Complete marks a pending refund completed.
func (r *RefundRepo) Complete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refunds SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'pending'
	`, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return apperr.Conflictf("refund %s already completed", id)
	}
	return nil
}

func (r *RefundRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM refunds WHERE status = 'pending'`)
	return n, err
}
