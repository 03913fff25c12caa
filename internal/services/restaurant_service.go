package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	"quickbite/internal/geo"
	"quickbite/internal/repos"
	"quickbite/internal/validate"
)

type RestaurantService struct {
	Restaurants *repos.RestaurantRepo
	Menu        *repos.MenuRepo
}

type RestaurantQuery struct {
	Category string
	OpenOnly bool
	// Near filters and sorts by distance when RadiusKm > 0.
	Lat, Lng, RadiusKm float64
}

type RestaurantDetail struct {
	domain.Restaurant
	Menu []domain.MenuItem `json:"menu"`
}

type RestaurantInput struct {
	Name             string  `json:"name" validate:"required,max=60"`
	Category         string  `json:"category" validate:"required,max=30"`
	Address          string  `json:"address" validate:"required,max=200"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	Phone            string  `json:"phone" validate:"omitempty,phone"`
	MinOrder         int64   `json:"min_order" validate:"gte=0"`
	DeliveryFee      int64   `json:"delivery_fee" validate:"gte=0"`
	FreeDeliveryOver int64   `json:"free_delivery_over" validate:"gte=0"`
	IsOpen           *bool   `json:"is_open"`
}

type MenuItemInput struct {
	Name        string `json:"name" validate:"required,max=60"`
	Description string `json:"description" validate:"max=500"`
	Price       int64  `json:"price" validate:"gte=0"`
	Available   *bool  `json:"available"`
	SortOrder   int    `json:"sort_order"`
}

func (s *RestaurantService) List(ctx context.Context, q RestaurantQuery) ([]domain.Restaurant, error) {
	list, err := s.Restaurants.List(ctx, repos.RestaurantFilter{Category: q.Category, OpenOnly: q.OpenOnly})
	if err != nil {
		return nil, err
	}
	if q.RadiusKm <= 0 {
		return list, nil
	}
	if !validate.Coord(q.Lat, q.Lng) {
		return nil, apperr.Invalidf("invalid coordinates")
	}
	out := list[:0]
	for _, r := range list {
		r.DistanceKm = geo.Distance(q.Lat, q.Lng, r.Lat, r.Lng)
		if r.DistanceKm <= q.RadiusKm {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

func (s *RestaurantService) Categories(ctx context.Context) ([]string, error) {
	return s.Restaurants.Categories(ctx)
}

// Get returns a restaurant with the menu visible to customers.
func (s *RestaurantService) Get(ctx context.Context, id string) (*RestaurantDetail, error) {
	r, err := s.Restaurants.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	menu, err := s.Menu.List(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return &RestaurantDetail{Restaurant: *r, Menu: menu}, nil
}

func (s *RestaurantService) Mine(ctx context.Context, owner *domain.User) ([]domain.Restaurant, error) {
	return s.Restaurants.List(ctx, repos.RestaurantFilter{OwnerID: owner.ID})
}

// owned loads a restaurant the actor is allowed to manage.
func (s *RestaurantService) owned(ctx context.Context, actor *domain.User, id string) (*domain.Restaurant, error) {
	r, err := s.Restaurants.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && r.OwnerID != actor.ID {
		return nil, apperr.ErrForbidden
	}
	return r, nil
}

func applyRestaurant(r *domain.Restaurant, in RestaurantInput) error {
	name, ok := validate.Name(in.Name)
	if !ok {
		return apperr.Invalidf("invalid name")
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		return apperr.Invalidf("invalid phone")
	}
	if strings.TrimSpace(in.Address) == "" || strings.TrimSpace(in.Category) == "" {
		return apperr.Invalidf("address and category are required")
	}
	if !validate.Coord(in.Lat, in.Lng) {
		return apperr.Invalidf("invalid coordinates")
	}
	if in.MinOrder < 0 || in.DeliveryFee < 0 || in.FreeDeliveryOver < 0 {
		return apperr.Invalidf("amounts must not be negative")
	}
	r.Name = name
	r.Category = strings.ToLower(strings.TrimSpace(in.Category))
	r.Address = strings.TrimSpace(in.Address)
	r.Lat, r.Lng = in.Lat, in.Lng
	r.Phone = phone
	r.MinOrder = in.MinOrder
	r.DeliveryFee = in.DeliveryFee
	r.FreeDeliveryOver = in.FreeDeliveryOver
	if in.IsOpen != nil {
		r.IsOpen = *in.IsOpen
	}
	return nil
}

func (s *RestaurantService) Create(ctx context.Context, owner *domain.User, in RestaurantInput) (*domain.Restaurant, error) {
	if owner.Role != domain.RoleOwner && !owner.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	r := &domain.Restaurant{ID: uuid.NewString(), OwnerID: owner.ID, IsOpen: true}
	if err := applyRestaurant(r, in); err != nil {
		return nil, err
	}
	if err := s.Restaurants.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RestaurantService) Update(ctx context.Context, actor *domain.User, id string, in RestaurantInput) (*domain.Restaurant, error) {
	r, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := applyRestaurant(r, in); err != nil {
		return nil, err
	}
	if err := s.Restaurants.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// FullMenu lists every item, including unavailable ones, for the owner.
func (s *RestaurantService) FullMenu(ctx context.Context, actor *domain.User, restaurantID string) ([]domain.MenuItem, error) {
	if _, err := s.owned(ctx, actor, restaurantID); err != nil {
		return nil, err
	}
	return s.Menu.List(ctx, restaurantID, false)
}

func applyMenuItem(m *domain.MenuItem, in MenuItemInput) error {
	name, ok := validate.Name(in.Name)
	if !ok {
		return apperr.Invalidf("invalid name")
	}
	if in.Price < 0 {
		return apperr.Invalidf("price must not be negative")
	}
	m.Name = name
	m.Description = strings.TrimSpace(in.Description)
	m.Price = in.Price
	m.SortOrder = in.SortOrder
	if in.Available != nil {
		m.Available = *in.Available
	}
	return nil
}

func (s *RestaurantService) AddMenuItem(ctx context.Context, actor *domain.User, restaurantID string, in MenuItemInput) (*domain.MenuItem, error) {
	if _, err := s.owned(ctx, actor, restaurantID); err != nil {
		return nil, err
	}
	m := &domain.MenuItem{ID: uuid.NewString(), RestaurantID: restaurantID, Available: true}
	if err := applyMenuItem(m, in); err != nil {
		return nil, err
	}
	if err := s.Menu.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *RestaurantService) UpdateMenuItem(ctx context.Context, actor *domain.User, itemID string, in MenuItemInput) (*domain.MenuItem, error) {
	m, err := s.Menu.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, actor, m.RestaurantID); err != nil {
		return nil, err
	}
	if err := applyMenuItem(m, in); err != nil {
		return nil, err
	}
	if err := s.Menu.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *RestaurantService) DeleteMenuItem(ctx context.Context, actor *domain.User, itemID string) error {
	m, err := s.Menu.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, actor, m.RestaurantID); err != nil {
		return err
	}
	return s.Menu.Delete(ctx, itemID)
}
