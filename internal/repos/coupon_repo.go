package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
)

const couponCols = `code, kind, value, min_order, max_discount, usage_limit, used_count, expires_at, active`

type CouponRepo struct{ db sqlx.ExtContext }

func NewCouponRepo(db sqlx.ExtContext) *CouponRepo { return &CouponRepo{db: db} }

func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	_, err := sqlx.NamedExecContext(ctx, r.db, `
		INSERT INTO coupons(`+couponCols+`)
		VALUES(:code, :kind, :value, :min_order, :max_discount, :usage_limit, :used_count, :expires_at, :active)
	`, c)
	if isUnique(err) {
		return apperr.Conflictf("coupon %s already exists", c.Code)
	}
	return err
}

func (r *CouponRepo) Get(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	if err := sqlx.GetContext(ctx, r.db, &c, `SELECT `+couponCols+` FROM coupons WHERE code = ?`, code); err != nil {
		return nil, notFound(err, "coupon")
	}
	return &c, nil
}

func (r *CouponRepo) List(ctx context.Context) ([]domain.Coupon, error) {
	var out []domain.Coupon
	err := sqlx.SelectContext(ctx, r.db, &out, `SELECT `+couponCols+` FROM coupons ORDER BY active DESC, code`)
	return out, err
}

func (r *CouponRepo) SetActive(ctx context.Context, code string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE coupons SET active = ? WHERE code = ?`, active, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(errNoRows, "coupon")
	}
	return nil
}

// Redeem bumps used_count unless the usage limit has been reached meanwhile.
func (r *CouponRepo) Redeem(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE code = ? AND active = 1 AND (usage_limit = 0 OR used_count < usage_limit)
	`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Conflictf("coupon %s is no longer available", code)
	}
	return nil
}

// Release gives back one use, for a cancelled order.
func (r *CouponRepo) Release(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE coupons SET used_count = used_count - 1 WHERE code = ? AND used_count > 0`, code)
	return err
}
