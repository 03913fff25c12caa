package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quickbite/internal/domain"
)

const adCols = `id, title, image_url, link_url, starts_at, ends_at, active, sort_order`

type AdRepo struct{ db *sqlx.DB }

func NewAdRepo(db *sqlx.DB) *AdRepo { return &AdRepo{db: db} }

func (r *AdRepo) Create(ctx context.Context, a *domain.Advertisement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO advertisements(`+adCols+`)
		VALUES(:id, :title, :image_url, :link_url, :starts_at, :ends_at, :active, :sort_order)
	`, a)
	return err
}

// Live returns active ads whose window contains at.
func (r *AdRepo) Live(ctx context.Context, at string) ([]domain.Advertisement, error) {
	var out []domain.Advertisement
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+adCols+`
		FROM advertisements
		WHERE active = 1 AND starts_at <= ? AND ends_at > ?
		ORDER BY sort_order, starts_at
	`, at, at)
	return out, err
}

func (r *AdRepo) List(ctx context.Context) ([]domain.Advertisement, error) {
	var out []domain.Advertisement
	err := r.db.SelectContext(ctx, &out, `SELECT `+adCols+` FROM advertisements ORDER BY sort_order, starts_at`)
	return out, err
}

func (r *AdRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE advertisements SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(errNoRows, "advertisement")
	}
	return nil
}
