package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"quickbite/internal/domain"
)

const restaurantCols = `id,owner_id,name,category,address,lat,lng,phone,min_order,delivery_fee,free_delivery_over,is_open,created_at`

type RestaurantRepo struct{ db *sqlx.DB }

func NewRestaurantRepo(db *sqlx.DB) *RestaurantRepo { return &RestaurantRepo{db: db} }

type RestaurantFilter struct {
	Category string
	OwnerID  string
	OpenOnly bool
}

func (r *RestaurantRepo) Create(ctx context.Context, x *domain.Restaurant) error {
	if x.CreatedAt == "" {
		x.CreatedAt = now()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO restaurants(`+restaurantCols+`)
		VALUES(:id,:owner_id,:name,:category,:address,:lat,:lng,:phone,:min_order,:delivery_fee,:free_delivery_over,:is_open,:created_at)
	`, x)
	return err
}

func (r *RestaurantRepo) Update(ctx context.Context, x *domain.Restaurant) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE restaurants SET
		  name=:name, category=:category, address=:address, lat=:lat, lng=:lng, phone=:phone,
		  min_order=:min_order, delivery_fee=:delivery_fee, free_delivery_over=:free_delivery_over,
		  is_open=:is_open
		WHERE id=:id
	`, x)
	return err
}

func (r *RestaurantRepo) Get(ctx context.Context, id string) (*domain.Restaurant, error) {
	var x domain.Restaurant
	if err := r.db.GetContext(ctx, &x, `SELECT `+restaurantCols+` FROM restaurants WHERE id=?`, id); err != nil {
		return nil, notFound(err, "restaurant")
	}
	return &x, nil
}

func (r *RestaurantRepo) List(ctx context.Context, f RestaurantFilter) ([]domain.Restaurant, error) {
	where := `1=1`
	args := []any{}
	if f.Category != "" {
		where += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.OwnerID != "" {
		where += ` AND owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.OpenOnly {
		where += ` AND is_open = 1`
	}
	var out []domain.Restaurant
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+restaurantCols+`
		FROM restaurants
		WHERE `+where+`
		ORDER BY is_open DESC, name`, args...)
	return out, err
}

// Categories lists the distinct categories in use.
func (r *RestaurantRepo) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.SelectContext(ctx, &out, `SELECT DISTINCT category FROM restaurants ORDER BY category`)
	return out, err
}
