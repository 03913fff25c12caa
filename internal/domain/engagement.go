package domain

type Notification struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"-"`
	Kind      string `db:"kind" json:"kind"`
	Title     string `db:"title" json:"title"`
	Body      string `db:"body" json:"body"`
	OrderID   string `db:"order_id" json:"order_id,omitempty"`
	ReadAt    string `db:"read_at" json:"read_at,omitempty"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

type PushToken struct {
	Token     string `db:"token" json:"token"`
	UserID    string `db:"user_id" json:"-"`
	Platform  string `db:"platform" json:"platform"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

type CouponKind string

const (
	CouponPercentage CouponKind = "percentage"
	CouponFlat       CouponKind = "flat"
)

type Coupon struct {
	Code        string     `db:"code" json:"code"`
	Kind        CouponKind `db:"kind" json:"kind"`
	Value       int64      `db:"value" json:"value"`
	MinOrder    int64      `db:"min_order" json:"min_order"`
	MaxDiscount int64      `db:"max_discount" json:"max_discount"`
	UsageLimit  int        `db:"usage_limit" json:"usage_limit"`
	UsedCount   int        `db:"used_count" json:"used_count"`
	ExpiresAt   string     `db:"expires_at" json:"expires_at"`
	Active      bool       `db:"active" json:"active"`
}

type PointsEntry struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"-"`
	Delta     int64  `db:"delta" json:"delta"`
	Reason    string `db:"reason" json:"reason"`
	OrderID   string `db:"order_id" json:"order_id,omitempty"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

type Advertisement struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	ImageURL  string `db:"image_url" json:"image_url"`
	LinkURL   string `db:"link_url" json:"link_url"`
	StartsAt  string `db:"starts_at" json:"starts_at"`
	EndsAt    string `db:"ends_at" json:"ends_at"`
	Active    bool   `db:"active" json:"active"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
}

type ChatRoom struct {
	ID        string `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

type ChatMessage struct {
	ID        string `db:"id" json:"id"`
	RoomID    string `db:"room_id" json:"room_id"`
	SenderID  string `db:"sender_id" json:"sender_id"`
	Body      string `db:"body" json:"body"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
