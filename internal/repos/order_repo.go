package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
)

// OrderRepo works against the pool or an open transaction.
type OrderRepo struct{ db sqlx.ExtContext }

func NewOrderRepo(db sqlx.ExtContext) *OrderRepo { return &OrderRepo{db: db} }

const orderSelect = `
	SELECT o.id, o.customer_id, o.restaurant_id, COALESCE(o.rider_id,'') AS rider_id, o.status,
	       o.subtotal, o.delivery_fee, o.discount, o.points_used, o.total, o.coupon_code,
	       o.delivery_address, o.delivery_lat, o.delivery_lng, o.request_note,
	       o.created_at, o.updated_at,
	       r.name AS restaurant_name, r.owner_id
	FROM orders o
	JOIN restaurants r ON r.id = o.restaurant_id`

// OrderFilter narrows List. Zero fields are ignored.
type OrderFilter struct {
	CustomerID   string
	RestaurantID string
	RiderID      string
	Status       domain.OrderStatus
	Statuses     []domain.OrderStatus
	Unassigned   bool
	Limit        int
}

// Create inserts the order header and its line items. Call it inside a
// transaction.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	ts := now()
	if o.CreatedAt == "" {
		o.CreatedAt = ts
	}
	o.UpdatedAt = o.CreatedAt
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, customer_id, restaurant_id, status, subtotal, delivery_fee, discount, points_used, total,
	     coupon_code, delivery_address, delivery_lat, delivery_lng, request_note, created_at, updated_at)
	  VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, o.ID, o.CustomerID, o.RestaurantID, o.Status, o.Subtotal, o.DeliveryFee, o.Discount, o.PointsUsed, o.Total,
		o.CouponCode, o.DeliveryAddress, o.DeliveryLat, o.DeliveryLng, o.RequestNote, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if _, err := r.db.ExecContext(ctx, `
		  INSERT INTO order_items(order_id, menu_item_id, name, price, qty)
		  VALUES(?, ?, ?, ?, ?)
		`, o.ID, it.MenuItemID, it.Name, it.Price, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Get loads one order with its items.
func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := sqlx.GetContext(ctx, r.db, &o, orderSelect+` WHERE o.id = ?`, id); err != nil {
		return nil, notFound(err, "order")
	}
	items, err := r.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepo) Items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := sqlx.SelectContext(ctx, r.db, &items, `
		SELECT order_id, menu_item_id, name, price, qty
		FROM order_items
		WHERE order_id = ?
		ORDER BY name
	`, orderID)
	return items, err
}

// List returns order headers newest first; items are not loaded.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	where := `1=1`
	args := []any{}
	if f.CustomerID != "" {
		where += ` AND o.customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.RestaurantID != "" {
		where += ` AND o.restaurant_id = ?`
		args = append(args, f.RestaurantID)
	}
	if f.RiderID != "" {
		where += ` AND o.rider_id = ?`
		args = append(args, f.RiderID)
	}
	if f.Status != "" {
		where += ` AND o.status = ?`
		args = append(args, f.Status)
	}
	if f.Unassigned {
		where += ` AND o.rider_id IS NULL`
	}
	q := orderSelect + ` WHERE ` + where
	if len(f.Statuses) > 0 {
		q += ` AND o.status IN (?)`
		args = append(args, f.Statuses)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += ` ORDER BY o.created_at DESC, o.id LIMIT ?`
	args = append(args, limit)

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, err
	}
	var out []domain.Order
	err = sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...)
	return out, err
}

// UpdateStatus moves the order from -> to only if it is still in from.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, to, now(), id, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Conflictf("order %s is no longer %s", id, from)
	}
	return nil
}

// AssignRider sets the rider on an unassigned order that is still in one of
// the given statuses.
func (r *OrderRepo) AssignRider(ctx context.Context, id, riderID string, statuses []domain.OrderStatus) error {
	q, args, err := sqlx.In(`
		UPDATE orders SET rider_id = ?, updated_at = ?
		WHERE id = ? AND rider_id IS NULL AND status IN (?)
	`, riderID, now(), id, statuses)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Conflictf("order %s is not available", id)
	}
	return nil
}

func (r *OrderRepo) AddHistory(ctx context.Context, h *domain.StatusChange) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt == "" {
		h.CreatedAt = now()
	}
	_, err := sqlx.NamedExecContext(ctx, r.db, `
		INSERT INTO order_status_history(id, order_id, from_status, to_status, actor_id, actor_role, note, created_at)
		VALUES(:id, :order_id, :from_status, :to_status, :actor_id, :actor_role, :note, :created_at)
	`, h)
	return err
}

func (r *OrderRepo) History(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT id, order_id, from_status, to_status, actor_id, actor_role, note, created_at
		FROM order_status_history
		WHERE order_id = ?
		ORDER BY created_at, rowid
	`, orderID)
	return out, err
}

type StatusCount struct {
	Status domain.OrderStatus `db:"status"`
	N      int                `db:"n"`
}

func (r *OrderRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var out []StatusCount
	err := sqlx.SelectContext(ctx, r.db, &out, `SELECT status, COUNT(*) AS n FROM orders GROUP BY status`)
	return out, err
}

func (r *OrderRepo) InsertCancellation(ctx context.Context, c *domain.Cancellation) error {
	if c.CreatedAt == "" {
		c.CreatedAt = now()
	}
	_, err := sqlx.NamedExecContext(ctx, r.db, `
		INSERT INTO cancellations(order_id, reason, initiated_by, actor_role, status_at_cancel, refund_rate, fee, refund_amount, created_at)
		VALUES(:order_id, :reason, :initiated_by, :actor_role, :status_at_cancel, :refund_rate, :fee, :refund_amount, :created_at)
	`, c)
	if isUnique(err) {
		return apperr.Conflictf("order %s already cancelled", c.OrderID)
	}
	return err
}

func (r *OrderRepo) Cancellation(ctx context.Context, orderID string) (*domain.Cancellation, error) {
	var c domain.Cancellation
	err := sqlx.GetContext(ctx, r.db, &c, `
		SELECT order_id, reason, initiated_by, actor_role, status_at_cancel, refund_rate, fee, refund_amount, created_at
		FROM cancellations WHERE order_id = ?
	`, orderID)
	if err != nil {
		return nil, notFound(err, "cancellation")
	}
	return &c, nil
}
