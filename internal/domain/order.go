package domain

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusPreparing  OrderStatus = "preparing"
	StatusReady      OrderStatus = "ready"
	StatusPickedUp   OrderStatus = "picked_up"
	StatusDelivering OrderStatus = "delivering"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Order amounts are whole currency units; KRW has no minor unit.
type Order struct {
	ID              string      `db:"id" json:"id"`
	CustomerID      string      `db:"customer_id" json:"customer_id"`
	RestaurantID    string      `db:"restaurant_id" json:"restaurant_id"`
	RiderID         string      `db:"rider_id" json:"rider_id,omitempty"`
	Status          OrderStatus `db:"status" json:"status"`
	Subtotal        int64       `db:"subtotal" json:"subtotal"`
	DeliveryFee     int64       `db:"delivery_fee" json:"delivery_fee"`
	Discount        int64       `db:"discount" json:"discount"`
	PointsUsed      int64       `db:"points_used" json:"points_used"`
	Total           int64       `db:"total" json:"total"`
	CouponCode      string      `db:"coupon_code" json:"coupon_code,omitempty"`
	DeliveryAddress string      `db:"delivery_address" json:"delivery_address"`
	DeliveryLat     float64     `db:"delivery_lat" json:"delivery_lat"`
	DeliveryLng     float64     `db:"delivery_lng" json:"delivery_lng"`
	RequestNote     string      `db:"request_note" json:"request_note,omitempty"`
	CreatedAt       string      `db:"created_at" json:"created_at"`
	UpdatedAt       string      `db:"updated_at" json:"updated_at"`

	RestaurantName string      `db:"restaurant_name" json:"restaurant_name,omitempty"`
	OwnerID        string      `db:"owner_id" json:"-"`
	Items          []OrderItem `db:"-" json:"items,omitempty"`
}

type OrderItem struct {
	OrderID    string `db:"order_id" json:"-"`
	MenuItemID string `db:"menu_item_id" json:"menu_item_id"`
	Name       string `db:"name" json:"name"`
	Price      int64  `db:"price" json:"price"`
	Qty        int    `db:"qty" json:"qty"`
}

func (i OrderItem) Subtotal() int64 { return i.Price * int64(i.Qty) }

type StatusChange struct {
	ID         string      `db:"id" json:"id"`
	OrderID    string      `db:"order_id" json:"order_id"`
	FromStatus OrderStatus `db:"from_status" json:"from_status"`
	ToStatus   OrderStatus `db:"to_status" json:"to_status"`
	ActorID    string      `db:"actor_id" json:"actor_id"`
	ActorRole  Role        `db:"actor_role" json:"actor_role"`
	Note       string      `db:"note" json:"note,omitempty"`
	CreatedAt  string      `db:"created_at" json:"created_at"`
}

type Cancellation struct {
	OrderID        string      `db:"order_id" json:"order_id"`
	Reason         string      `db:"reason" json:"reason"`
	InitiatedBy    string      `db:"initiated_by" json:"initiated_by"`
	ActorRole      Role        `db:"actor_role" json:"actor_role"`
	StatusAtCancel OrderStatus `db:"status_at_cancel" json:"status_at_cancel"`
	RefundRate     int64       `db:"refund_rate" json:"refund_rate"`
	Fee            int64       `db:"fee" json:"fee"`
	RefundAmount   int64       `db:"refund_amount" json:"refund_amount"`
	CreatedAt      string      `db:"created_at" json:"created_at"`
}

const (
	RefundPending   = "pending"
	RefundCompleted = "completed"
)

type Refund struct {
	ID          string `db:"id" json:"id"`
	OrderID     string `db:"order_id" json:"order_id"`
	Amount      int64  `db:"amount" json:"amount"`
	Status      string `db:"status" json:"status"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	CompletedAt string `db:"completed_at" json:"completed_at,omitempty"`
}
