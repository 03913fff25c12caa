package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"quickbite/internal/domain"
)

const menuCols = `id,restaurant_id,name,description,price,available,sort_order`

type MenuRepo struct{ db *sqlx.DB }

func NewMenuRepo(db *sqlx.DB) *MenuRepo { return &MenuRepo{db: db} }

func (r *MenuRepo) List(ctx context.Context, restaurantID string, availableOnly bool) ([]domain.MenuItem, error) {
	q := `SELECT ` + menuCols + ` FROM menu_items WHERE restaurant_id = ?`
	if availableOnly {
		q += ` AND available = 1`
	}
	q += ` ORDER BY sort_order, name`
	var out []domain.MenuItem
	err := r.db.SelectContext(ctx, &out, q, restaurantID)
	return out, err
}

func (r *MenuRepo) Get(ctx context.Context, id string) (*domain.MenuItem, error) {
	var m domain.MenuItem
	if err := r.db.GetContext(ctx, &m, `SELECT `+menuCols+` FROM menu_items WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "menu item")
	}
	return &m, nil
}

// ByIDs loads the given items keyed by id; missing ids are simply absent.
func (r *MenuRepo) ByIDs(ctx context.Context, ids []string) (map[string]domain.MenuItem, error) {
	out := map[string]domain.MenuItem{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT `+menuCols+` FROM menu_items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.MenuItem
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

func (r *MenuRepo) Create(ctx context.Context, m *domain.MenuItem) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO menu_items(`+menuCols+`)
		VALUES(:id,:restaurant_id,:name,:description,:price,:available,:sort_order)
	`, m)
	return err
}

func (r *MenuRepo) Update(ctx context.Context, m *domain.MenuItem) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE menu_items
		SET name=:name, description=:description, price=:price, available=:available, sort_order=:sort_order
		WHERE id=:id
	`, m)
	return err
}

func (r *MenuRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(errNoRows, "menu item")
	}
	return nil
}
