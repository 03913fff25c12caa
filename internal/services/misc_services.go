package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
)

type PointsService struct {
	Points *repos.PointsRepo
}

type PointsSummary struct {
	Balance int64                `json:"balance"`
	Ledger  []domain.PointsEntry `json:"ledger"`
}

func (s *PointsService) Summary(ctx context.Context, u *domain.User, limit int) (*PointsSummary, error) {
	bal, err := s.Points.Balance(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.Points.Ledger(ctx, u.ID, limit)
	if err != nil {
		return nil, err
	}
	return &PointsSummary{Balance: bal, Ledger: ledger}, nil
}

type AdService struct {
	Ads *repos.AdRepo
	Now func() time.Time
}

type AdInput struct {
	Title     string    `json:"title" validate:"required,max=80"`
	ImageURL  string    `json:"image_url" validate:"required,max=500"`
	LinkURL   string    `json:"link_url" validate:"max=500"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required"`
	SortOrder int       `json:"sort_order"`
}

func (s *AdService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Live lists ads that are active and currently inside their window.
func (s *AdService) Live(ctx context.Context) ([]domain.Advertisement, error) {
	return s.Ads.Live(ctx, s.now().Format(repos.TimeFormat))
}

func (s *AdService) List(ctx context.Context) ([]domain.Advertisement, error) {
	return s.Ads.List(ctx)
}

func (s *AdService) Create(ctx context.Context, in AdInput) (*domain.Advertisement, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.ImageURL) == "" {
		return nil, apperr.Invalidf("title and image are required")
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, apperr.Invalidf("ad must end after it starts")
	}
	a := &domain.Advertisement{
		Title:     title,
		ImageURL:  strings.TrimSpace(in.ImageURL),
		LinkURL:   strings.TrimSpace(in.LinkURL),
		StartsAt:  in.StartsAt.UTC().Format(repos.TimeFormat),
		EndsAt:    in.EndsAt.UTC().Format(repos.TimeFormat),
		Active:    true,
		SortOrder: in.SortOrder,
	}
	if err := s.Ads.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AdService) SetActive(ctx context.Context, id string, active bool) error {
	return s.Ads.SetActive(ctx, id, active)
}

type RefundService struct {
	Refunds *repos.RefundRepo
}

func (s *RefundService) List(ctx context.Context, pendingOnly bool) ([]repos.RefundRow, error) {
	return s.Refunds.List(ctx, pendingOnly)
}

func (s *RefundService) PendingCount(ctx context.Context) (int, error) {
	return s.Refunds.CountPending(ctx)
}

// Complete records that the money went back to the customer.
func (s *RefundService) Complete(ctx context.Context, admin *domain.User, id string) error {
	if !admin.IsAdmin() {
		return apperr.ErrForbidden
	}
	return s.Refunds.Complete(ctx, id)
}

const maxChatMessage = 1000

type ChatService struct {
	Orders *OrderService
	Chat   *repos.ChatRepo
	Pub    realtime.Publisher
}

func (s *ChatService) participant(ctx context.Context, u *domain.User, orderID string) (*domain.Order, error) {
	o, err := s.Orders.Get(ctx, u, orderID)
	if err != nil {
		return nil, err
	}
	if !Participant(u, o) {
		return nil, apperr.NotFoundf("order not found")
	}
	return o, nil
}

func (s *ChatService) Messages(ctx context.Context, viewer *domain.User, orderID string, limit int) ([]domain.ChatMessage, error) {
	if _, err := s.participant(ctx, viewer, orderID); err != nil {
		return nil, err
	}
	room, err := s.Chat.RoomByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.Chat.Messages(ctx, room.ID, limit)
}

func (s *ChatService) Send(ctx context.Context, sender *domain.User, orderID, body string) (*domain.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > maxChatMessage {
		return nil, apperr.Invalidf("message must be 1..%d characters", maxChatMessage)
	}
	o, err := s.participant(ctx, sender, orderID)
	if err != nil {
		return nil, err
	}
	room, err := s.Chat.RoomByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	m := &domain.ChatMessage{RoomID: room.ID, SenderID: sender.ID, Body: body}
	if err := s.Chat.AddMessage(ctx, m); err != nil {
		return nil, err
	}
	publish(ctx, s.Pub, realtime.Event{Type: realtime.EventChatMessage, OrderID: o.ID, Data: m})
	return m, nil
}
