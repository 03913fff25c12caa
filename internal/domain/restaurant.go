package domain

type Restaurant struct {
	ID               string  `db:"id" json:"id"`
	OwnerID          string  `db:"owner_id" json:"owner_id"`
	Name             string  `db:"name" json:"name"`
	Category         string  `db:"category" json:"category"`
	Address          string  `db:"address" json:"address"`
	Lat              float64 `db:"lat" json:"lat"`
	Lng              float64 `db:"lng" json:"lng"`
	Phone            string  `db:"phone" json:"phone"`
	MinOrder         int64   `db:"min_order" json:"min_order"`
	DeliveryFee      int64   `db:"delivery_fee" json:"delivery_fee"`
	FreeDeliveryOver int64   `db:"free_delivery_over" json:"free_delivery_over"`
	IsOpen           bool    `db:"is_open" json:"is_open"`
	CreatedAt        string  `db:"created_at" json:"created_at"`

	DistanceKm float64 `db:"-" json:"distance_km,omitempty"`
}

type MenuItem struct {
	ID           string `db:"id" json:"id"`
	RestaurantID string `db:"restaurant_id" json:"restaurant_id"`
	Name         string `db:"name" json:"name"`
	Description  string `db:"description" json:"description"`
	Price        int64  `db:"price" json:"price"`
	Available    bool   `db:"available" json:"available"`
	SortOrder    int    `db:"sort_order" json:"sort_order"`
}
