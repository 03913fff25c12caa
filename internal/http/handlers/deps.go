package handlers

import (
	"quickbite/internal/config"
	"quickbite/internal/geo"
	"quickbite/internal/orderflow"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
	"quickbite/internal/services"
	"quickbite/internal/tokens"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth   *services.AuthService
	Hub    *realtime.Hub
	Orders *services.OrderService

	AuthHandler         *AuthHandler
	RestaurantHandler   *RestaurantHandler
	OrderHandler        *OrderHandler
	StreamHandler       *StreamHandler
	NotificationHandler *NotificationHandler
	PromoHandler        *PromoHandler
	GeoHandler          *GeoHandler
	AdminHandler        *AdminHandler
}

// NewDeps wires repositories, services and handlers. Events go to hub and to
// every mirror (the Kafka publisher in production).
func NewDeps(db *sqlx.DB, cfg config.Config, hub *realtime.Hub, mirrors ...realtime.Publisher) *Deps {
	var pub realtime.Publisher = hub
	if len(mirrors) > 0 {
		pub = append(realtime.MultiPublisher{hub}, mirrors...)
	}

	userRepo := repos.NewUserRepo(db)
	restRepo := repos.NewRestaurantRepo(db)
	menuRepo := repos.NewMenuRepo(db)

	authSvc := &services.AuthService{Users: userRepo, Tokens: tokens.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)}
	restSvc := &services.RestaurantService{Restaurants: restRepo, Menu: menuRepo}
	couponSvc := &services.CouponService{Coupons: repos.NewCouponRepo(db)}
	notifySvc := &services.NotificationService{Notes: repos.NewNotificationRepo(db), Pub: pub}
	policy := orderflow.Policy{FeeThreshold: cfg.CancelFeeThreshold, FlatFee: cfg.CancelFlatFee}
	orderSvc := &services.OrderService{
		DB:          db,
		Orders:      repos.NewOrderRepo(db),
		Restaurants: restRepo,
		Menu:        menuRepo,
		Coupons:     couponSvc,
		Notify:      notifySvc,
		Pub:         pub,
		Policy:      policy,
		PointsRate:  cfg.PointsRatePercent,
	}
	refundSvc := &services.RefundService{Refunds: repos.NewRefundRepo(db)}
	pointsSvc := &services.PointsService{Points: repos.NewPointsRepo(db)}
	adSvc := &services.AdService{Ads: repos.NewAdRepo(db)}
	chatSvc := &services.ChatService{Orders: orderSvc, Chat: repos.NewChatRepo(db), Pub: pub}

	return &Deps{
		Auth:   authSvc,
		Hub:    hub,
		Orders: orderSvc,

		AuthHandler:         &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		RestaurantHandler:   &RestaurantHandler{Restaurants: restSvc, OrderSvc: orderSvc},
		OrderHandler:        &OrderHandler{Orders: orderSvc, Chat: chatSvc},
		StreamHandler:       &StreamHandler{Orders: orderSvc, Hub: hub},
		NotificationHandler: &NotificationHandler{Notify: notifySvc},
		PromoHandler:        &PromoHandler{Coupons: couponSvc, PointsSvc: pointsSvc, AdSvc: adSvc},
		GeoHandler:          &GeoHandler{Geo: geo.NewClient(cfg.GeocoderURL, cfg.GeocoderKey)},
		AdminHandler: &AdminHandler{
			Orders:  orderSvc,
			Refunds: refundSvc,
			Auth:    authSvc,
			Coupons: couponSvc,
			Ads:     adSvc,
		},
	}
}
